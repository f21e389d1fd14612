// Package extract turns uploaded files into page text: PDFs through their
// text layer, images through an OCR engine.
package extract

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	domain "github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindPDF
	KindImage
)

var imageExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true,
	".bmp": true, ".tif": true, ".tiff": true, ".gif": true,
}

// Detect classifies a file by content type, then extension, then magic bytes.
func Detect(f domain.File) Kind {
	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "application/pdf":
		return KindPDF
	case strings.HasPrefix(ct, "image/"):
		return KindImage
	}

	ext := strings.ToLower(filepath.Ext(f.Name))
	if ext == ".pdf" {
		return KindPDF
	}
	if imageExt[ext] {
		return KindImage
	}

	if len(f.Data) > 0 {
		sniffed := http.DetectContentType(f.Data)
		switch {
		case sniffed == "application/pdf":
			return KindPDF
		case strings.HasPrefix(sniffed, "image/"):
			return KindImage
		}
	}
	return KindUnknown
}

// Router dispatches to the PDF or image extractor.
type Router struct {
	PDF   domain.Extractor
	Image domain.Extractor
}

func NewRouter(ocr Recognizer) *Router {
	return &Router{PDF: PDF{}, Image: Image{OCR: ocr}}
}

func (r *Router) Extract(ctx context.Context, f domain.File) ([]domain.Page, error) {
	if len(f.Data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrUnreadable, f.Name)
	}
	switch Detect(f) {
	case KindPDF:
		return r.PDF.Extract(ctx, f)
	case KindImage:
		return r.Image.Extract(ctx, f)
	default:
		return nil, fmt.Errorf("%w: %s (%s)", domain.ErrUnsupported, f.Name, f.ContentType)
	}
}
