package extract

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"
	"github.com/poiesic/docpipe/core"
)

// PDF extracts text page by page with MuPDF.
type PDF struct{}

var _ Extractor = PDF{}

// NewPDF creates a PDF extractor.
func NewPDF() PDF {
	return PDF{}
}

// Extract reads every page and records its span in the joined text.
// Pages whose text cannot be read are skipped.
func (PDF) Extract(ctx context.Context, data []byte) (*Extraction, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, core.ValidationError(core.ErrUnsupportedFormat, fmt.Sprintf("failed to open PDF: %v", err))
	}
	defer doc.Close()

	pages := make([]string, doc.NumPage())
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := doc.Text(i)
		if err != nil {
			continue
		}
		pages[i] = text
	}
	return joinPages(pages), nil
}
