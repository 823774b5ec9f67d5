package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusCanTransition(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusPending, JobStatusProcessing, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusProcessing, true},
		{JobStatusCompleted, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusPending, false},
		{JobStatusCompleted, JobStatusProcessing, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusFailed, JobStatusCompleted, false},
		{JobStatusPending, JobStatus("bogus"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	assert.False(t, JobStatusPending.IsTerminal())
	assert.False(t, JobStatusProcessing.IsTerminal())
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
}

func TestDocumentStatusView(t *testing.T) {
	started := time.Now().UTC()
	doc := &Document{
		ID:               "doc-1",
		FileName:         "a.pdf",
		ProcessingStatus: ProcessingStatusProcessing,
		CreatedAt:        started.Add(-time.Minute),
		StartedAt:        &started,
	}

	status := doc.Status()
	assert.Equal(t, "doc-1", status.DocumentID)
	assert.Equal(t, "a.pdf", status.FileName)
	assert.Equal(t, ProcessingStatusProcessing, status.Status)
	require.NotNil(t, status.StartedAt)
	assert.Nil(t, status.CompletedAt)
}

func TestChunkIDsAreDeterministic(t *testing.T) {
	assert.Equal(t, "doc_chunk_0", ChunkID("doc", 0))
	assert.Equal(t, "doc_chunk_12", ChunkID("doc", 12))
	assert.Equal(t, []string{"doc_chunk_2", "doc_chunk_3"}, ChunkIDs("doc", 2, 4))
	assert.Nil(t, ChunkIDs("doc", 4, 4))
	assert.Equal(t, ChunkIDs("doc", 0, 3), ChunkIDs("doc", 0, 3))
}

func TestBlobRefFromContent(t *testing.T) {
	a := BlobRefFromContent([]byte("hello"))
	b := BlobRefFromContent([]byte("hello"))
	c := BlobRefFromContent([]byte("world"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestOwnerNamespace(t *testing.T) {
	assert.Equal(t, "user_42", OwnerNamespace("42"))
}
