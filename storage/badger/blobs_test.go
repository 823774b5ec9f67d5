package badger

import (
	"context"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	blobs := newTestStores(t).Blobs
	ctx := context.Background()

	ref, err := blobs.PutBlob(ctx, []byte("raw bytes"))
	require.NoError(t, err)
	assert.Equal(t, core.BlobRefFromContent([]byte("raw bytes")), ref)

	data, err := blobs.GetBlob(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw bytes"), data)

	_, err = blobs.GetBlob(ctx, "unknown")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBlobStoreReferenceCounting(t *testing.T) {
	blobs := newTestStores(t).Blobs
	ctx := context.Background()

	ref1, err := blobs.PutBlob(ctx, []byte("shared"))
	require.NoError(t, err)
	ref2, err := blobs.PutBlob(ctx, []byte("shared"))
	require.NoError(t, err)
	assert.Equal(t, ref1, ref2)

	require.NoError(t, blobs.DeleteBlob(ctx, ref1))
	_, err = blobs.GetBlob(ctx, ref1)
	require.NoError(t, err, "blob still referenced once")

	require.NoError(t, blobs.DeleteBlob(ctx, ref1))
	_, err = blobs.GetBlob(ctx, ref1)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.NoError(t, blobs.DeleteBlob(ctx, ref1))
}
