package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/docpipe/core"
)

// Registry maps every core.Format to its extraction outcome.
type Registry struct {
	text Extractor
	pdf  Extractor
	docx Extractor
}

// Option configures a Registry.
type Option func(*Registry)

// WithPlainText overrides the plain text extractor.
func WithPlainText(e Extractor) Option {
	return func(r *Registry) { r.text = e }
}

// WithPDF overrides the PDF extractor.
func WithPDF(e Extractor) Option {
	return func(r *Registry) { r.pdf = e }
}

// WithDOCX overrides the DOCX extractor.
func WithDOCX(e Extractor) Option {
	return func(r *Registry) { r.docx = e }
}

// NewRegistry creates a Registry with the built-in extractors.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		text: NewPlainText(),
		pdf:  NewPDF(),
		docx: NewDOCX(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Extract resolves mimeType to a format and extracts its text.
// Legacy Word documents and unknown types fail with core.ErrValidation.
func (r *Registry) Extract(ctx context.Context, mimeType string, data []byte) (*Extraction, error) {
	format := core.FormatFromMimeType(mimeType)

	var ext Extractor
	switch format {
	case core.FormatPlainText:
		ext = r.text
	case core.FormatPDF:
		ext = r.pdf
	case core.FormatDOCX:
		ext = r.docx
	case core.FormatLegacyDoc:
		return nil, core.LegacyDocError()
	case core.FormatUnknown:
		return nil, core.ValidationError(core.ErrUnsupportedFormat, fmt.Sprintf("mime type %q", mimeType))
	default:
		panic(fmt.Sprintf("extract: unhandled format %v", format))
	}

	out, err := ext.Extract(ctx, data)
	if err != nil {
		if errors.Is(err, core.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("extract %s: %w", format, err)
	}
	return out, nil
}
