// Package storetest provides the behavioural test suite for vectorstore.Store
// implementations.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) vectorstore.Store

// axis returns a unit vector along dimension i of a 4-dimensional space,
// tilted slightly towards dimension (i+1)%4 by tilt.
func axis(i int, tilt float32) []float32 {
	v := make([]float32, 4)
	v[i] = 1
	v[(i+1)%4] = tilt
	return v
}

func vector(docID string, index int, values []float32) core.Vector {
	return core.Vector{
		ID:     core.ChunkID(docID, index),
		Values: values,
		Metadata: core.ChunkMetadata{
			DocumentID:     docID,
			OwnerNamespace: "user_u1",
			FileName:       docID + ".pdf",
			ChunkIndex:     index,
			Text:           fmt.Sprintf("chunk %d of %s", index, docID),
			Page:           index + 1,
			CreatedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

// Run executes the suite against stores created by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("query orders by similarity", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Upsert(ctx, "user_u1", []core.Vector{
			vector("d1", 0, axis(0, 0)),
			vector("d1", 1, axis(0, 0.5)),
			vector("d2", 0, axis(2, 0)),
		}))

		results, err := s.Query(ctx, "user_u1", axis(0, 0), 2, true)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "d1_chunk_0", results[0].ID)
		assert.Equal(t, "d1_chunk_1", results[1].ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-4)
		assert.Greater(t, results[0].Score, results[1].Score)

		md := results[0].Metadata
		assert.Equal(t, "d1", md.DocumentID)
		assert.Equal(t, "d1.pdf", md.FileName)
		assert.Equal(t, "chunk 0 of d1", md.Text)
		assert.Equal(t, 0, md.ChunkIndex)
		assert.Equal(t, 1, md.Page)
		assert.Equal(t, "user_u1", md.OwnerNamespace)
	})

	t.Run("topK larger than namespace", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Upsert(ctx, "user_u1", []core.Vector{vector("d1", 0, axis(1, 0))}))
		results, err := s.Query(ctx, "user_u1", axis(1, 0), 10, false)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Empty(t, results[0].Metadata.Text)
	})

	t.Run("unknown namespace is empty", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		results, err := s.Query(context.Background(), "user_nobody", axis(0, 0), 5, true)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Upsert(ctx, "user_a", []core.Vector{vector("da", 0, axis(0, 0))}))
		require.NoError(t, s.Upsert(ctx, "user_b", []core.Vector{vector("db", 0, axis(0, 0))}))

		results, err := s.Query(ctx, "user_a", axis(0, 0), 5, true)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "da_chunk_0", results[0].ID)
	})

	t.Run("upsert replaces by id", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Upsert(ctx, "user_u1", []core.Vector{vector("d1", 0, axis(0, 0))}))
		replaced := vector("d1", 0, axis(3, 0))
		replaced.Metadata.Text = "rewritten"
		require.NoError(t, s.Upsert(ctx, "user_u1", []core.Vector{replaced}))

		results, err := s.Query(ctx, "user_u1", axis(3, 0), 5, true)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "rewritten", results[0].Metadata.Text)
		assert.InDelta(t, 1.0, results[0].Score, 1e-4)
	})

	t.Run("delete removes ids", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Upsert(ctx, "user_u1", []core.Vector{
			vector("d1", 0, axis(0, 0)),
			vector("d1", 1, axis(1, 0)),
		}))
		require.NoError(t, s.Delete(ctx, "user_u1", []string{"d1_chunk_1", "d1_chunk_9"}))

		results, err := s.Query(ctx, "user_u1", axis(1, 0), 5, false)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "d1_chunk_0", results[0].ID)

		require.NoError(t, s.Delete(ctx, "user_u1", nil))
		require.NoError(t, s.Delete(ctx, "user_nobody", []string{"x"}))
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		err := s.Upsert(ctx, "", []core.Vector{vector("d1", 0, axis(0, 0))})
		assert.ErrorIs(t, err, vectorstore.ErrEmptyNamespace)

		err = s.Upsert(ctx, "user_u1", []core.Vector{{ID: "empty"}})
		assert.ErrorIs(t, err, vectorstore.ErrEmptyVector)
	})
}
