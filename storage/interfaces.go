package storage

import (
	"context"
	"time"

	"github.com/poiesic/docpipe/core"
)

// JobQueue is a durable FIFO of jobs.
// Implementations must be thread-safe and support concurrent consumers.
type JobQueue interface {
	// Enqueue persists a job and appends it to the queue.
	// Assigns an ID when job.ID is empty, sets Status to pending and
	// stamps CreatedAt. Returns the job id.
	Enqueue(ctx context.Context, job *core.Job) (string, error)

	// Dequeue atomically removes and returns the oldest queued job, waiting
	// up to timeout for one to arrive. Returns nil, nil on timeout.
	// Two concurrent callers never receive the same job.
	Dequeue(ctx context.Context, timeout time.Duration) (*core.Job, error)

	// UpdateStatus merges a status change into the stored job record.
	// Sets StartedAt and increments Attempts on entering processing, and
	// CompletedAt on entering a terminal status. errMsg replaces the stored
	// error when non-empty.
	// Returns ErrNotFound for unknown ids and core.ErrInvalidTransition for
	// regressions.
	UpdateStatus(ctx context.Context, jobID string, status core.JobStatus, errMsg string) (*core.Job, error)

	// GetStatus returns the job record, or nil, nil for unknown ids.
	GetStatus(ctx context.Context, jobID string) (*core.Job, error)

	// ListJobs returns all job records with the given status, oldest first.
	// An empty status returns every job.
	ListJobs(ctx context.Context, status core.JobStatus) ([]*core.Job, error)

	// Len returns the number of jobs waiting to be dequeued.
	Len(ctx context.Context) (int, error)

	// Close releases resources held by the queue.
	Close() error
}

// DocumentRepository stores document records.
type DocumentRepository interface {
	// AddDocument stores a new document record.
	// Sets CreatedAt and UpdatedAt when not already set.
	AddDocument(ctx context.Context, doc *core.Document) error

	// UpdateDocument replaces an existing document record.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if the document doesn't exist.
	UpdateDocument(ctx context.Context, doc *core.Document) error

	// UpdateDocumentForJob replaces the record only while the stored copy
	// still names jobID as its job. Returns ErrJobSuperseded otherwise.
	UpdateDocumentForJob(ctx context.Context, doc *core.Document, jobID string) error

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// ListDocumentsByOwner returns an owner's documents, newest first.
	ListDocumentsByOwner(ctx context.Context, ownerID string) ([]*core.Document, error)

	// DeleteDocument removes a document record and its owner index entry.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id string) error
}

// BlobStore stores raw upload bytes by content reference.
type BlobStore interface {
	// PutBlob stores data and returns its content-addressed reference.
	// Storing identical data twice returns the same reference.
	PutBlob(ctx context.Context, data []byte) (string, error)

	// GetBlob returns the bytes behind ref.
	// Returns ErrNotFound if the reference is unknown.
	GetBlob(ctx context.Context, ref string) ([]byte, error)

	// DeleteBlob removes the bytes behind ref. Unknown references are ignored.
	DeleteBlob(ctx context.Context, ref string) error
}
