package questions

import "errors"

var (
	// ErrUnsupported is returned for uploads that are neither PDF nor a supported image.
	ErrUnsupported = errors.New("unsupported file type")

	// ErrUnreadable wraps parse failures of a malformed PDF or image.
	ErrUnreadable = errors.New("file could not be read")

	// ErrNoText means extraction succeeded but produced only whitespace.
	ErrNoText = errors.New("no text could be extracted")

	// ErrNoQuestions means a run finished without a single usable question.
	ErrNoQuestions = errors.New("no questions extracted")
)
