package references

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/poiesic/docpipe/core"
)

// FormatReferences renders refs as a numbered, human-readable list:
//
//	Sources:
//	1. report.pdf (pages 2, 5) - 3 relevant sections, relevance 0.91
//
// An empty list renders as the empty string.
func FormatReferences(refs []core.SourceDocumentReference) string {
	if len(refs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Sources:\n")
	for i, ref := range refs {
		fmt.Fprintf(&b, "%d. %s", i+1, ref.Name)
		if len(ref.Pages) > 0 {
			b.WriteString(" (")
			b.WriteString(pageLabel(ref.Pages))
			b.WriteString(")")
		}
		fmt.Fprintf(&b, " - %d relevant %s, relevance %.2f\n",
			ref.ChunkCount, plural(ref.ChunkCount, "section", "sections"), ref.RelevanceScore)
	}
	return b.String()
}

func pageLabel(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return plural(len(pages), "page ", "pages ") + strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
