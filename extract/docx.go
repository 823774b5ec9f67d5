package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/poiesic/docpipe/core"
)

const docxBodyPath = "word/document.xml"

// DOCX extracts paragraph text from Office Open XML documents.
type DOCX struct{}

var _ Extractor = DOCX{}

// NewDOCX creates a DOCX extractor.
func NewDOCX() DOCX {
	return DOCX{}
}

// Extract reads word/document.xml and joins paragraphs with newlines.
func (DOCX) Extract(_ context.Context, data []byte) (*Extraction, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, core.ValidationError(core.ErrUnsupportedFormat, fmt.Sprintf("not a DOCX archive: %v", err))
	}

	for _, file := range reader.File {
		if file.Name != docxBodyPath {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		text, err := parseDocumentXML(content)
		if err != nil {
			return nil, core.ValidationError(core.ErrUnsupportedFormat, fmt.Sprintf("malformed %s: %v", docxBodyPath, err))
		}
		return &Extraction{Text: text}, nil
	}
	return nil, core.ValidationError(core.ErrUnsupportedFormat, "DOCX archive has no "+docxBodyPath)
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
	Tabs []struct{}    `xml:"tab"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, para := range doc.Body.Paragraphs {
		var line strings.Builder
		for _, r := range para.Runs {
			if len(r.Tabs) > 0 {
				line.WriteByte(' ')
			}
			for _, t := range r.Text {
				line.WriteString(t.Content)
			}
		}
		text := strings.TrimSpace(line.String())
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(text)
	}
	return b.String(), nil
}
