package core

import (
	"mime"
	"path/filepath"
	"strings"
)

// Format is the closed set of document formats the pipeline recognises.
// Extraction dispatches on it with an exhaustive switch.
type Format int

const (
	FormatUnknown Format = iota
	FormatPlainText
	FormatPDF
	FormatDOCX
	FormatLegacyDoc
)

// Mime types understood by FormatFromMimeType.
const (
	MimeTypePlainText = "text/plain"
	MimeTypeMarkdown  = "text/markdown"
	MimeTypePDF       = "application/pdf"
	MimeTypeDOCX      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeTypeLegacyDoc = "application/msword"
)

// KnownFormats lists every format with a defined extraction outcome.
var KnownFormats = []Format{FormatPlainText, FormatPDF, FormatDOCX, FormatLegacyDoc}

var formatNames = map[Format]string{
	FormatUnknown:   "unknown",
	FormatPlainText: "text",
	FormatPDF:       "pdf",
	FormatDOCX:      "docx",
	FormatLegacyDoc: "doc",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "unknown"
}

// FormatFromMimeType maps a mime type (parameters allowed) to a Format.
func FormatFromMimeType(mimeType string) Format {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}
	switch mediaType {
	case MimeTypePlainText, MimeTypeMarkdown, "text/x-markdown":
		return FormatPlainText
	case MimeTypePDF:
		return FormatPDF
	case MimeTypeDOCX:
		return FormatDOCX
	case MimeTypeLegacyDoc:
		return FormatLegacyDoc
	default:
		return FormatUnknown
	}
}

// MimeTypeFromFileName guesses a mime type from a file extension.
// Unknown extensions yield application/octet-stream.
func MimeTypeFromFileName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".text":
		return MimeTypePlainText
	case ".md", ".markdown":
		return MimeTypeMarkdown
	case ".pdf":
		return MimeTypePDF
	case ".docx":
		return MimeTypeDOCX
	case ".doc":
		return MimeTypeLegacyDoc
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
