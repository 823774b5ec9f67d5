package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFromMimeType(t *testing.T) {
	tests := []struct {
		mimeType string
		want     Format
	}{
		{"text/plain", FormatPlainText},
		{"text/plain; charset=utf-8", FormatPlainText},
		{"text/markdown", FormatPlainText},
		{"application/pdf", FormatPDF},
		{"APPLICATION/PDF", FormatPDF},
		{MimeTypeDOCX, FormatDOCX},
		{"application/msword", FormatLegacyDoc},
		{"image/png", FormatUnknown},
		{"", FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFromMimeType(tt.mimeType))
		})
	}
}

func TestMimeTypeFromFileName(t *testing.T) {
	assert.Equal(t, MimeTypePDF, MimeTypeFromFileName("report.PDF"))
	assert.Equal(t, MimeTypeDOCX, MimeTypeFromFileName("notes.docx"))
	assert.Equal(t, MimeTypeLegacyDoc, MimeTypeFromFileName("old.doc"))
	assert.Equal(t, MimeTypePlainText, MimeTypeFromFileName("readme.txt"))
	assert.Equal(t, "application/octet-stream", MimeTypeFromFileName("blob"))
}

func TestFormatString(t *testing.T) {
	for _, f := range KnownFormats {
		assert.NotEqual(t, "unknown", f.String())
	}
	assert.Equal(t, "unknown", Format(99).String())
}
