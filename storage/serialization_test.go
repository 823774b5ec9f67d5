package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalJob(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	job := &core.Job{
		ID:   "job-1",
		Type: core.JobTypeVectorizeDocument,
		Payload: core.JobPayload{
			DocumentID:  "doc-1",
			RawBytesRef: "abc",
			FileName:    "report.pdf",
			MimeType:    core.MimeTypePDF,
			OwnerID:     "u1",
		},
		Status:      core.JobStatusFailed,
		Attempts:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
		StartedAt:   &now,
		CompletedAt: &now,
		Error:       "boom",
	}

	decoded, err := UnmarshalJob(MarshalJob(job))
	require.NoError(t, err)
	assert.Equal(t, job, decoded)
}

func TestMarshalUnmarshalDocument(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	doc := &core.Document{
		ID:               "doc-1",
		OwnerID:          "u1",
		FileName:         "report.pdf",
		FileSize:         1 << 20,
		MimeType:         core.MimeTypePDF,
		BlobRef:          "abc",
		ProcessingStatus: core.ProcessingStatusCompleted,
		ChunkCount:       7,
		JobID:            "job-1",
		CreatedAt:        now,
		UpdatedAt:        now,
		CompletedAt:      &now,
	}

	decoded, err := UnmarshalDocument(MarshalDocument(doc))
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
	assert.Nil(t, decoded.StartedAt)
}

func TestUnmarshal_Invalid(t *testing.T) {
	_, err := UnmarshalJob(nil)
	assert.True(t, errors.Is(err, ErrSerializationFailed))

	_, err = UnmarshalDocument([]byte{0xff})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestErrNotFoundMatchesCore(t *testing.T) {
	assert.ErrorIs(t, ErrNotFound, core.ErrNotFound)
}
