package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

const defaultPollInterval = 50 * time.Millisecond

// errQueueEntryOrphaned marks a queue entry whose job record is gone.
var errQueueEntryOrphaned = errors.New("queue entry has no job record")

// JobQueue implements storage.JobQueue for BadgerDB.
//
// Jobs are stored under their id and referenced from a FIFO list keyed by a
// badger sequence. A pop reads and deletes the head entry in one read-write
// transaction; badger's conflict detection fails the commit of any other
// transaction that read the same entry, so each entry is handed out once.
type JobQueue struct {
	backend      *Backend
	seq          *badger.Sequence
	pollInterval time.Duration
	logger       *slog.Logger

	mu   sync.Mutex
	wake chan struct{}
}

var _ storage.JobQueue = (*JobQueue)(nil)

// QueueOption configures a JobQueue.
type QueueOption func(*JobQueue)

// WithPollInterval sets how often a waiting Dequeue re-checks the queue.
// In-process enqueues wake waiters immediately; polling covers everything else.
func WithPollInterval(d time.Duration) QueueOption {
	return func(q *JobQueue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

// NewJobQueue creates a new JobQueue.
func NewJobQueue(backend *Backend, opts ...QueueOption) (*JobQueue, error) {
	seq, err := backend.GetSequence(jobQueueSeq)
	if err != nil {
		return nil, err
	}

	q := &JobQueue{
		backend:      backend,
		seq:          seq,
		pollInterval: defaultPollInterval,
		logger:       slog.Default().With("component", "job-queue"),
		wake:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Close releases the queue sequence.
func (q *JobQueue) Close() error {
	return q.seq.Release()
}

// Enqueue persists a job and appends it to the queue.
func (q *JobQueue) Enqueue(ctx context.Context, job *core.Job) (string, error) {
	if job == nil {
		return "", fmt.Errorf("%w: job is nil", core.ErrValidation)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Type == "" {
		job.Type = core.JobTypeVectorizeDocument
	}
	if err := core.ValidateJob(job); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	job.Status = core.JobStatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	job.StartedAt = nil
	job.CompletedAt = nil
	job.Error = ""

	seq, err := q.nextSeq()
	if err != nil {
		return "", err
	}

	err = q.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(job.ID)
		if _, err := tx.Get(key); err == nil {
			return fmt.Errorf("%w: job %s", storage.ErrDuplicateKey, job.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := tx.Set(key, storage.MarshalJob(job)); err != nil {
			return err
		}
		if err := tx.Set(makeQueueKey(seq), []byte(job.ID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return "", err
	}

	q.logger.Debug("job enqueued", "jobID", job.ID, "documentID", job.Payload.DocumentID)
	q.signal()
	return job.ID, nil
}

func (q *JobQueue) nextSeq() (uint64, error) {
	// BadgerDB sequences can return 0 on first call, so we skip it
	seq, err := q.seq.Next()
	if err != nil {
		return 0, err
	}
	if seq == 0 {
		return q.seq.Next()
	}
	return seq, nil
}

// Dequeue removes and returns the oldest job, waiting up to timeout.
func (q *JobQueue) Dequeue(ctx context.Context, timeout time.Duration) (*core.Job, error) {
	deadline := time.Now().Add(timeout)
	for {
		// Take the wake channel before looking so an enqueue that lands
		// between the look and the wait is not missed.
		wake := q.waitChan()

		job, err := q.pop()
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		timer := time.NewTimer(min(remaining, q.pollInterval))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// pop takes the head entry, skipping entries that lost a race or have no record.
func (q *JobQueue) pop() (*core.Job, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		job, err := q.tryPop()
		switch {
		case errors.Is(err, badger.ErrConflict):
			continue
		case errors.Is(err, errQueueEntryOrphaned):
			q.logger.Warn("dropped orphaned queue entry", "err", err)
			continue
		case err != nil:
			return nil, err
		}
		return job, nil
	}
	// Heavily contended; report empty and let the caller wait and retry.
	return nil, nil
}

func (q *JobQueue) tryPop() (*core.Job, error) {
	var job *core.Job
	err := q.backend.WithTx(func(tx *badger.Txn) error {
		key, jobID, err := peekHead(tx)
		if err != nil || key == nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}

		record, err := readJob(tx, jobID)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: %s", errQueueEntryOrphaned, jobID)
		}
		job = record
		return nil
	}, true)
	return job, err
}

// peekHead returns the first queue entry key and the job id it references.
func peekHead(tx *badger.Txn) ([]byte, string, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = queuePrefix()
	opts.PrefetchSize = 1
	iter := tx.NewIterator(opts)
	defer iter.Close()

	iter.Rewind()
	if !iter.Valid() {
		return nil, "", nil
	}
	item := iter.Item()
	id, err := item.ValueCopy(nil)
	if err != nil {
		return nil, "", err
	}
	return item.KeyCopy(nil), string(id), nil
}

// UpdateStatus merges a status change into the stored job record.
func (q *JobQueue) UpdateStatus(ctx context.Context, jobID string, status core.JobStatus, errMsg string) (*core.Job, error) {
	var updated *core.Job
	err := q.backend.WithRetriedTx(func(tx *badger.Txn) error {
		job, err := readJob(tx, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("%w: job %q", storage.ErrNotFound, jobID)
		}
		if !job.Status.CanTransition(status) {
			return fmt.Errorf("%w: job %s: %s -> %s", core.ErrInvalidTransition, jobID, job.Status, status)
		}

		now := time.Now().UTC()
		if status == core.JobStatusProcessing && job.Status != core.JobStatusProcessing {
			job.StartedAt = &now
			job.Attempts++
		}
		if status.IsTerminal() && job.CompletedAt == nil {
			job.CompletedAt = &now
		}
		if errMsg != "" {
			job.Error = errMsg
		}
		job.Status = status
		job.UpdatedAt = now

		if err := tx.Set(makeJobKey(jobID), storage.MarshalJob(job)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		updated = job
		return nil
	})
	return updated, err
}

// GetStatus returns the job record, or nil when the id is unknown.
func (q *JobQueue) GetStatus(ctx context.Context, jobID string) (*core.Job, error) {
	var job *core.Job
	err := q.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		job, err = readJob(tx, jobID)
		return err
	}, false)
	return job, err
}

// ListJobs returns job records with the given status, oldest first.
func (q *JobQueue) ListJobs(ctx context.Context, status core.JobStatus) ([]*core.Job, error) {
	var jobs []*core.Job
	err := q.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(jobRecordPrefix+":"), func(_, val []byte) error {
			job, err := storage.UnmarshalJob(val)
			if err != nil {
				return err
			}
			if status == "" || job.Status == status {
				jobs = append(jobs, job)
			}
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(jobs, func(a, b *core.Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return jobs, nil
}

// Len returns the number of queued entries.
func (q *JobQueue) Len(ctx context.Context) (int, error) {
	count := 0
	err := q.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = queuePrefix()
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// waitChan returns the channel closed by the next signal.
func (q *JobQueue) waitChan() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.wake
}

// signal wakes every waiting Dequeue.
func (q *JobQueue) signal() {
	q.mu.Lock()
	close(q.wake)
	q.wake = make(chan struct{})
	q.mu.Unlock()
}

// readJob reads a job record within a transaction.
// Returns nil if the job doesn't exist.
func readJob(tx *badger.Txn, jobID string) (*core.Job, error) {
	item, err := tx.Get(makeJobKey(jobID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job *core.Job
	err = item.Value(func(val []byte) error {
		var err error
		job, err = storage.UnmarshalJob(val)
		return err
	})
	return job, err
}
