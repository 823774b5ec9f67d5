package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/notify"
	"github.com/poiesic/docpipe/storage"
)

// LeaseExpiredMessage is recorded on jobs failed by the reaper.
const LeaseExpiredMessage = "worker lease expired"

// ReaperConfig controls stale job recovery.
type ReaperConfig struct {
	// Interval is the time between sweeps.
	Interval time.Duration

	// StaleAfter is how long a job may stay processing before it is failed.
	StaleAfter time.Duration

	// Requeue enqueues a fresh job for the same document after failing a
	// stale one, while the attempt count is below MaxAttempts.
	Requeue bool

	// MaxAttempts bounds the total processing attempts across requeues.
	MaxAttempts int
}

// Validate checks the configuration.
func (c ReaperConfig) Validate() error {
	if c.Interval <= 0 || c.StaleAfter <= 0 {
		return fmt.Errorf("%w: interval and stale-after must be positive", ErrInvalidReaperConfig)
	}
	if c.Requeue && c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be positive when requeueing", ErrInvalidReaperConfig)
	}
	return nil
}

// Reaper fails jobs stuck in processing, for instance after a worker crash.
// It only moves jobs forward, so a late worker finishing the same job
// cannot be overwritten by it.
type Reaper struct {
	queue     storage.JobQueue
	documents storage.DocumentRepository
	notifier  Notifier
	config    ReaperConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewReaper creates a reaper. notifier may be nil.
func NewReaper(queue storage.JobQueue, documents storage.DocumentRepository, notifier Notifier, config ReaperConfig, logger *slog.Logger) (*Reaper, error) {
	if queue == nil {
		return nil, ErrQueueRequired
	}
	if documents == nil {
		return nil, ErrDocumentsRequired
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		queue:     queue,
		documents: documents,
		notifier:  notifier,
		config:    config,
		now:       time.Now,
		logger:    logger.With("component", "reaper"),
	}, nil
}

// Run sweeps every Interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("sweep failed", "err", err)
			}
		}
	}
}

// Sweep fails every stale processing job and returns how many it reaped.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	jobs, err := r.queue.ListJobs(ctx, core.JobStatusProcessing)
	if err != nil {
		return 0, err
	}

	cutoff := r.now().Add(-r.config.StaleAfter)
	reaped := 0
	var errs []error
	for _, job := range jobs {
		if job.StartedAt == nil || job.StartedAt.After(cutoff) {
			continue
		}
		ok, err := r.reap(ctx, job)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			reaped++
		}
	}
	return reaped, errors.Join(errs...)
}

func (r *Reaper) reap(ctx context.Context, job *core.Job) (bool, error) {
	logger := r.logger.With("jobID", job.ID, "documentID", job.Payload.DocumentID)

	if _, err := r.queue.UpdateStatus(ctx, job.ID, core.JobStatusFailed, LeaseExpiredMessage); err != nil {
		if errors.Is(err, core.ErrInvalidTransition) {
			return false, nil
		}
		return false, fmt.Errorf("fail job %s: %w", job.ID, err)
	}

	doc, err := r.documents.GetDocument(ctx, job.Payload.DocumentID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			logger.Warn("reaped job has no document")
			return true, nil
		}
		return true, err
	}
	if doc.JobID != job.ID {
		// A newer job owns the document.
		return true, nil
	}

	if r.config.Requeue && job.Attempts < r.config.MaxAttempts {
		next := &core.Job{Type: job.Type, Payload: job.Payload, Attempts: job.Attempts}
		id, err := r.queue.Enqueue(ctx, next)
		if err != nil {
			return true, fmt.Errorf("requeue job %s: %w", job.ID, err)
		}
		doc.ProcessingStatus = core.ProcessingStatusQueued
		doc.JobID = id
		doc.ErrorMessage = ""
		doc.StartedAt = nil
		doc.CompletedAt = nil
		logger.Info("requeued stale job", "newJobID", id, "attempts", job.Attempts)
	} else {
		now := r.now().UTC()
		doc.ProcessingStatus = core.ProcessingStatusFailed
		doc.ErrorMessage = LeaseExpiredMessage
		doc.CompletedAt = &now
		logger.Warn("failed stale job", "attempts", job.Attempts)
	}
	if err := r.documents.UpdateDocumentForJob(ctx, doc, job.ID); err != nil {
		if errors.Is(err, storage.ErrJobSuperseded) {
			return true, nil
		}
		return true, err
	}

	if doc.ProcessingStatus == core.ProcessingStatusFailed && r.notifier != nil {
		r.notifier.SendToOwner(ctx, doc.OwnerID, notify.DocumentProcessed(doc, LeaseExpiredMessage))
	}
	return true, nil
}
