//go:build notesseract || !cgo

package tesseract

import (
	"context"
	"errors"
)

// Engine is unavailable in builds without cgo tesseract bindings.
type Engine struct {
	Languages []string
}

func New(languages ...string) *Engine {
	return &Engine{Languages: languages}
}

func (t *Engine) Recognize(context.Context, []byte) (string, error) {
	return "", errors.New("tesseract support not compiled in (built with notesseract)")
}
