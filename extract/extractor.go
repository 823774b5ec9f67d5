package extract

import (
	"context"
	"sort"
	"strings"
)

// Extractor pulls text out of one document format.
// Implementations must be safe for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (*Extraction, error)
}

// PageSpan is the byte range [Start, End) of Text that came from page Number (1-based).
type PageSpan struct {
	Number int
	Start  int
	End    int
}

// Extraction is the text of a document and, for paged formats, where each page lies.
type Extraction struct {
	Text  string
	Pages []PageSpan
}

// PageAt returns the page containing byte offset, or 0 when the format has
// no pages. Offsets falling in the separator between two pages belong to
// the following page.
func (e *Extraction) PageAt(offset int) int {
	if len(e.Pages) == 0 {
		return 0
	}
	i := sort.Search(len(e.Pages), func(i int) bool {
		return e.Pages[i].End > offset
	})
	if i == len(e.Pages) {
		return e.Pages[len(e.Pages)-1].Number
	}
	return e.Pages[i].Number
}

const pageSeparator = "\n\n"

// joinPages concatenates page texts with blank lines and records their spans.
// Pages that are blank after trimming are skipped but keep their numbering.
func joinPages(pages []string) *Extraction {
	var (
		b     strings.Builder
		spans []PageSpan
	)
	for i, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(pageSeparator)
		}
		start := b.Len()
		b.WriteString(page)
		spans = append(spans, PageSpan{Number: i + 1, Start: start, End: b.Len()})
	}
	return &Extraction{Text: b.String(), Pages: spans}
}
