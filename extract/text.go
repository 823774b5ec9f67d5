package extract

import (
	"bytes"
	"context"
	"unicode/utf8"

	"github.com/poiesic/docpipe/core"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PlainText extracts UTF-8 text and markdown.
type PlainText struct{}

var _ Extractor = PlainText{}

// NewPlainText creates a plain text extractor.
func NewPlainText() PlainText {
	return PlainText{}
}

// Extract returns data as text after stripping a byte order mark.
func (PlainText) Extract(_ context.Context, data []byte) (*Extraction, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, core.ValidationError(core.ErrUnsupportedFormat, "text is not valid UTF-8")
	}
	return &Extraction{Text: string(data)}, nil
}
