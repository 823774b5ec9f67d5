package vectorstore

import (
	"context"
	"errors"

	"github.com/poiesic/docpipe/core"
)

var (
	// ErrEmptyNamespace indicates a call without a namespace.
	ErrEmptyNamespace = errors.New("namespace is required")

	// ErrEmptyVector indicates a vector with no values.
	ErrEmptyVector = errors.New("vector has no values")
)

// Store is a namespaced nearest-neighbour index over chunk vectors.
// Implementations must be thread-safe.
type Store interface {
	// Upsert inserts vectors, replacing any with the same id in the namespace.
	Upsert(ctx context.Context, namespace string, vectors []core.Vector) error

	// Query returns up to topK vectors closest to vector by cosine
	// similarity, best first. An empty or unknown namespace yields no results.
	// Metadata is populated only when includeMetadata is set.
	Query(ctx context.Context, namespace string, vector []float32, topK int, includeMetadata bool) ([]core.SearchResult, error)

	// Delete removes the given ids from the namespace. Unknown ids are ignored.
	Delete(ctx context.Context, namespace string, ids []string) error

	// Close releases resources held by the store.
	Close() error
}

// ValidateUpsert checks the arguments shared by every Upsert implementation.
func ValidateUpsert(namespace string, vectors []core.Vector) error {
	if namespace == "" {
		return ErrEmptyNamespace
	}
	for _, v := range vectors {
		if len(v.Values) == 0 {
			return errors.Join(ErrEmptyVector, errors.New("id "+v.ID))
		}
	}
	return nil
}
