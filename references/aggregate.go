package references

import (
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/docpipe/core"
)

// blockSeparator joins the per-chunk blocks of a document context.
const blockSeparator = "\n\n"

// Result is the aggregated view of a set of search results.
type Result struct {
	DocumentContext string                         `json:"documentContext"`
	SourceDocuments []core.SourceDocumentReference `json:"sourceDocuments"`
	HasReferences   bool                           `json:"hasReferences"`
}

// Summary holds headline statistics over a reference list.
type Summary struct {
	DocumentCount         int     `json:"documentCount"`
	TotalChunks           int     `json:"totalChunks"`
	AverageRelevanceScore float32 `json:"averageRelevanceScore"`
	TopDocument           string  `json:"topDocument,omitempty"`
}

// Aggregate filters results to those scoring strictly above threshold and
// groups them by document.
//
// The context string holds one "Source: <fileName>\n<text>" block per kept
// result in input order. Each reference carries the best score among its
// chunks, the number of kept chunks and the distinct pages they came
// from in ascending order. References are sorted by score, highest first;
// ties keep the order in which documents first appeared.
func Aggregate(results []core.SearchResult, threshold float32) Result {
	var (
		blocks []string
		refs   []*core.SourceDocumentReference
		byDoc  = make(map[string]*core.SourceDocumentReference)
	)

	for _, r := range results {
		if r.Score <= threshold {
			continue
		}
		md := r.Metadata
		blocks = append(blocks, fmt.Sprintf("Source: %s\n%s", md.FileName, md.Text))

		ref, ok := byDoc[md.DocumentID]
		if !ok {
			ref = &core.SourceDocumentReference{
				ID:             md.DocumentID,
				Name:           md.FileName,
				Pages:          []int{},
				RelevanceScore: r.Score,
			}
			byDoc[md.DocumentID] = ref
			refs = append(refs, ref)
		}
		ref.ChunkCount++
		if r.Score > ref.RelevanceScore {
			ref.RelevanceScore = r.Score
		}
		if md.Page > 0 && !slices.Contains(ref.Pages, md.Page) {
			ref.Pages = append(ref.Pages, md.Page)
		}
	}

	slices.SortStableFunc(refs, func(a, b *core.SourceDocumentReference) int {
		switch {
		case a.RelevanceScore > b.RelevanceScore:
			return -1
		case a.RelevanceScore < b.RelevanceScore:
			return 1
		default:
			return 0
		}
	})

	sources := make([]core.SourceDocumentReference, len(refs))
	for i, ref := range refs {
		slices.Sort(ref.Pages)
		sources[i] = *ref
	}

	return Result{
		DocumentContext: strings.Join(blocks, blockSeparator),
		SourceDocuments: sources,
		HasReferences:   len(sources) > 0,
	}
}

// Summarize computes headline statistics over refs. The average is taken
// over per-document relevance scores; the top document is the first.
func Summarize(refs []core.SourceDocumentReference) Summary {
	if len(refs) == 0 {
		return Summary{}
	}

	var total float32
	s := Summary{DocumentCount: len(refs), TopDocument: refs[0].Name}
	for _, ref := range refs {
		s.TotalChunks += ref.ChunkCount
		total += ref.RelevanceScore
	}
	s.AverageRelevanceScore = total / float32(len(refs))
	return s
}
