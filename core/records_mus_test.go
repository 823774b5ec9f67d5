package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobMUSPreservesOptionalTimes(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	job := validJob()
	job.ID = "job-1"
	job.Status = JobStatusProcessing
	job.Attempts = 2
	job.CreatedAt = now
	job.UpdatedAt = now
	job.StartedAt = &now

	bs := make([]byte, JobMUS.Size(*job))
	n := JobMUS.Marshal(*job, bs)
	assert.Equal(t, len(bs), n)

	decoded, read, err := JobMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Equal(t, n, read)
	assert.Equal(t, *job, decoded)
	assert.Nil(t, decoded.CompletedAt)
}

func TestDocumentMUSTruncatedData(t *testing.T) {
	doc := Document{ID: "doc-1", OwnerID: "u1", FileName: "a.pdf", ChunkCount: 3, CreatedAt: time.Now().UTC()}
	bs := make([]byte, DocumentMUS.Size(doc))
	DocumentMUS.Marshal(doc, bs)

	_, _, err := DocumentMUS.Unmarshal(bs[:len(bs)/2])
	assert.Error(t, err)
}
