package extract

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
)

// Recognizer turns image bytes into text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Image runs OCR and returns a single page.
type Image struct {
	OCR Recognizer
}

func (e Image) Extract(ctx context.Context, f domain.File) ([]domain.Page, error) {
	if e.OCR == nil {
		return nil, fmt.Errorf("%w: %s: image OCR is disabled", domain.ErrUnsupported, f.Name)
	}
	text, err := e.OCR.Recognize(ctx, f.Data)
	if err != nil {
		return nil, fmt.Errorf("ocr %s: %w", f.Name, err)
	}
	return []domain.Page{{Number: 1, Text: strings.TrimSpace(text)}}, nil
}
