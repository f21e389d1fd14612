package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	domain "github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
)

// PDF extracts the text layer page by page. Scanned PDFs without a text
// layer come back as empty pages.
type PDF struct {
	MaxPages int
}

func (e PDF) Extract(ctx context.Context, f domain.File) (pages []domain.Page, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("%w: %s: %v", domain.ErrUnreadable, f.Name, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(f.Data), int64(len(f.Data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnreadable, f.Name, err)
	}

	total := r.NumPage()
	if e.MaxPages > 0 && total > e.MaxPages {
		total = e.MaxPages
	}
	pages = make([]domain.Page, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			// Empty page - not an error
			pages = append(pages, domain.Page{Number: i})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s page %d: %v", domain.ErrUnreadable, f.Name, i, err)
		}
		pages = append(pages, domain.Page{Number: i, Text: strings.TrimSpace(text)})
	}
	return pages, nil
}
