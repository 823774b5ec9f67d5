package search

import (
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/references"
)

// SearchMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results.
type SearchMonitor interface {
	Start(ownerID, query string)
	AfterEmbedding(dimension int)
	AfterVectorQuery(results []core.SearchResult)
	Finish(result references.Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string) {}
func (n *noopMonitor) AfterEmbedding(_ int) {}
func (n *noopMonitor) AfterVectorQuery(_ []core.SearchResult) {}
func (n *noopMonitor) Finish(_ references.Result) {}
