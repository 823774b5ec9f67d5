package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/references"
	"github.com/poiesic/docpipe/vectorstore"
)

const (
	// DefaultTopK is the number of chunks requested from the vector store.
	DefaultTopK = 5

	// DefaultThreshold is the similarity a chunk must exceed to be used.
	DefaultThreshold float32 = 0.5
)

// Retriever answers queries against an owner's indexed documents.
type Retriever struct {
	embedder  ai.Embedder
	store     vectorstore.Store
	topK      int
	threshold float32
	logger    *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithTopK sets how many chunks are requested per query.
func WithTopK(k int) Option {
	return func(r *Retriever) error {
		if k < 1 {
			return fmt.Errorf("top k must be positive: %d", k)
		}
		r.topK = k
		return nil
	}
}

// WithThreshold sets the exclusive similarity cutoff.
func WithThreshold(threshold float32) Option {
	return func(r *Retriever) error {
		if threshold < -1 || threshold > 1 {
			return fmt.Errorf("threshold must be within [-1, 1]: %v", threshold)
		}
		r.threshold = threshold
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a retriever.
func NewRetriever(embedder ai.Embedder, store vectorstore.Store, opts ...Option) (*Retriever, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrVectorStoreRequired
	}

	r := &Retriever{
		embedder:  embedder,
		store:     store,
		topK:      DefaultTopK,
		threshold: DefaultThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "retriever")
	return r, nil
}

// Search returns the nearest chunks to query in the owner's namespace,
// best first, before any threshold is applied.
func (r *Retriever) Search(ctx context.Context, ownerID, query string) ([]core.SearchResult, error) {
	return r.search(ctx, ownerID, query, &noopMonitor{})
}

func (r *Retriever) search(ctx context.Context, ownerID, query string, monitor SearchMonitor) ([]core.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.ValidationError(ErrEmptyQuery, "")
	}
	monitor.Start(ownerID, query)

	embedding, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, core.ExternalServiceError("embedding", err)
	}
	monitor.AfterEmbedding(len(embedding))

	results, err := r.store.Query(ctx, core.OwnerNamespace(ownerID), embedding, r.topK, true)
	if err != nil {
		return nil, core.ExternalServiceError("vector store", err)
	}
	monitor.AfterVectorQuery(results)
	return results, nil
}

// Retrieve searches and aggregates the matches into context and references.
func (r *Retriever) Retrieve(ctx context.Context, ownerID, query string) (references.Result, error) {
	return r.RetrieveWithMonitor(ctx, ownerID, query, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each stage.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, ownerID, query string, monitor SearchMonitor) (references.Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	results, err := r.search(ctx, ownerID, query, monitor)
	if err != nil {
		return references.Aggregate(nil, r.threshold), err
	}

	agg := references.Aggregate(results, r.threshold)
	monitor.Finish(agg)
	r.logger.Debug("query answered", "owner", ownerID, "matches", len(results), "documents", len(agg.SourceDocuments))
	return agg, nil
}

// Context is Retrieve that never fails: errors are logged and an empty
// result is returned.
func (r *Retriever) Context(ctx context.Context, ownerID, query string) references.Result {
	agg, err := r.Retrieve(ctx, ownerID, query)
	if err != nil {
		r.logger.Warn("retrieval failed, continuing without document context", "owner", ownerID, "err", err)
	}
	return agg
}
