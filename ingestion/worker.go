package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/chunking"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/extract"
	"github.com/poiesic/docpipe/notify"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/vectorstore"
)

const (
	// DefaultMinTextLength is the shortest extracted text, in runes, worth indexing.
	DefaultMinTextLength = 50

	defaultDequeueTimeout = 5 * time.Second
	defaultIdleSleep      = time.Second
)

// Progress checkpoints reported through job_progress notifications.
const (
	progressStarted  = 0
	progressChunked  = 10
	progressEmbedded = 90
)

// Notifier delivers notifications to an owner's live connections.
// *notify.Manager satisfies it.
type Notifier interface {
	SendToOwner(ctx context.Context, ownerID string, msg notify.Message) bool
}

// TextExtractor turns raw bytes of the given mime type into text.
// *extract.Registry satisfies it.
type TextExtractor interface {
	Extract(ctx context.Context, mimeType string, data []byte) (*extract.Extraction, error)
}

// Worker consumes vectorization jobs.
type Worker struct {
	queue     storage.JobQueue
	documents storage.DocumentRepository
	blobs     storage.BlobStore
	extractor TextExtractor
	embedder  ai.Embedder
	store     vectorstore.Store
	notifier  Notifier

	bands          []chunking.Band
	limits         chunking.Limits
	retry          RetryPolicy
	minTextLength  int
	dequeueTimeout time.Duration
	idleSleep      time.Duration
	logger         *slog.Logger
}

// Option configures a Worker.
type Option func(*Worker) error

// WithNotifier sets where progress and completion notifications go.
// Without one, notifications are dropped.
func WithNotifier(n Notifier) Option {
	return func(w *Worker) error {
		w.notifier = n
		return nil
	}
}

// WithExtractor replaces the default extraction registry.
func WithExtractor(e TextExtractor) Option {
	return func(w *Worker) error {
		if e != nil {
			w.extractor = e
		}
		return nil
	}
}

// WithBands sets the chunk size bands. Default is chunking.DefaultBands.
func WithBands(bands []chunking.Band) Option {
	return func(w *Worker) error {
		if len(bands) == 0 {
			return errors.New("at least one chunk band required")
		}
		w.bands = bands
		return nil
	}
}

// WithLimits sets the token ceiling and safety threshold of embedding batches.
func WithLimits(limits chunking.Limits) Option {
	return func(w *Worker) error {
		if err := limits.Validate(); err != nil {
			return err
		}
		w.limits = limits
		return nil
	}
}

// WithRetryPolicy sets how embedding and vector store calls are retried.
// Default is a single attempt.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(w *Worker) error {
		if err := p.Validate(); err != nil {
			return err
		}
		w.retry = p
		return nil
	}
}

// WithMinTextLength sets the shortest accepted extracted text in runes.
func WithMinTextLength(n int) Option {
	return func(w *Worker) error {
		w.minTextLength = max(n, 0)
		return nil
	}
}

// WithDequeueTimeout sets how long one dequeue waits for a job.
func WithDequeueTimeout(d time.Duration) Option {
	return func(w *Worker) error {
		if d > 0 {
			w.dequeueTimeout = d
		}
		return nil
	}
}

// WithIdleSleep sets the pause after an empty or failed dequeue.
func WithIdleSleep(d time.Duration) Option {
	return func(w *Worker) error {
		if d >= 0 {
			w.idleSleep = d
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewWorker creates a worker.
func NewWorker(
	queue storage.JobQueue,
	documents storage.DocumentRepository,
	blobs storage.BlobStore,
	embedder ai.Embedder,
	store vectorstore.Store,
	opts ...Option,
) (*Worker, error) {
	switch {
	case queue == nil:
		return nil, ErrQueueRequired
	case documents == nil:
		return nil, ErrDocumentsRequired
	case blobs == nil:
		return nil, ErrBlobsRequired
	case embedder == nil:
		return nil, ErrEmbedderRequired
	case store == nil:
		return nil, ErrVectorStoreRequired
	}

	w := &Worker{
		queue:          queue,
		documents:      documents,
		blobs:          blobs,
		extractor:      extract.NewRegistry(),
		embedder:       embedder,
		store:          store,
		bands:          chunking.DefaultBands,
		limits:         chunking.DefaultLimits(),
		retry:          DefaultRetryPolicy(),
		minTextLength:  DefaultMinTextLength,
		dequeueTimeout: defaultDequeueTimeout,
		idleSleep:      defaultIdleSleep,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	w.logger = w.logger.With("component", "worker")
	return w, nil
}

// Run processes jobs until ctx is cancelled. An empty queue or a dequeue
// error is followed by the idle sleep. Job failures never stop the loop.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	defer w.logger.Info("worker stopped")

	for ctx.Err() == nil {
		processed, err := w.ProcessNext(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Error("dequeue failed", "err", err)
		}
		if processed {
			continue
		}
		if w.idleSleep > 0 {
			timer := time.NewTimer(w.idleSleep)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
	}
}

// ProcessNext dequeues and processes a single job. It reports whether a
// job was taken. The returned error is a dequeue error; processing
// failures are recorded on the job and document instead.
// Cancelling ctx aborts the dequeue but not a job already taken.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.queue.Dequeue(ctx, w.dequeueTimeout)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	if err := w.processSafely(context.WithoutCancel(ctx), job); err != nil {
		w.logger.Warn("job failed", "jobID", job.ID, "documentID", job.Payload.DocumentID, "err", err)
	}
	return true, nil
}

func (w *Worker) processSafely(ctx context.Context, job *core.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("job panicked", "jobID", job.ID, "panic", r, "stack", string(debug.Stack()))
			err = w.fail(ctx, job, nil, fmt.Errorf("worker panic: %v", r))
		}
	}()
	return w.Process(ctx, job)
}

// Process runs every stage for job and records the outcome on the job and
// its document. It returns the failure, if any, after recording it.
func (w *Worker) Process(ctx context.Context, job *core.Job) error {
	logger := w.logger.With("jobID", job.ID, "documentID", job.Payload.DocumentID)
	start := time.Now()

	if _, err := w.queue.UpdateStatus(ctx, job.ID, core.JobStatusProcessing, ""); err != nil {
		return w.fail(ctx, job, nil, core.ExternalServiceError("job queue", err))
	}
	w.notify(ctx, job.Payload.OwnerID, notify.JobProgress(job, progressStarted, "processing started"))

	doc, err := w.documents.GetDocument(ctx, job.Payload.DocumentID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			err = core.NotFoundError("document", job.Payload.DocumentID)
		} else {
			err = core.ExternalServiceError("document store", err)
		}
		return w.fail(ctx, job, nil, err)
	}

	now := time.Now().UTC()
	previousChunks := doc.ChunkCount
	doc.ProcessingStatus = core.ProcessingStatusProcessing
	doc.StartedAt = &now
	doc.CompletedAt = nil
	doc.ErrorMessage = ""
	doc.JobID = job.ID
	if err := w.documents.UpdateDocument(ctx, doc); err != nil {
		return w.fail(ctx, job, doc, core.ExternalServiceError("document store", err))
	}

	count, err := w.vectorize(ctx, job, doc)
	if err != nil {
		return w.fail(ctx, job, doc, err)
	}

	if previousChunks > count {
		stale := core.ChunkIDs(doc.ID, count, previousChunks)
		if err := w.store.Delete(ctx, core.OwnerNamespace(doc.OwnerID), stale); err != nil {
			logger.Warn("failed to delete stale chunks", "count", len(stale), "err", err)
		}
	}

	return w.complete(ctx, job, doc, count, logger, time.Since(start))
}

// vectorize runs extraction through upsert and returns the number of
// chunks stored. Failures carry their category.
func (w *Worker) vectorize(ctx context.Context, job *core.Job, doc *core.Document) (int, error) {
	ref := job.Payload.RawBytesRef
	if ref == "" {
		ref = doc.BlobRef
	}
	data, err := w.blobs.GetBlob(ctx, ref)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return 0, core.NotFoundError("blob", ref)
		}
		return 0, core.ExternalServiceError("blob store", err)
	}

	mimeType := job.Payload.MimeType
	if mimeType == "" {
		mimeType = doc.MimeType
	}
	extraction, err := w.extractor.Extract(ctx, mimeType, data)
	if err != nil {
		if errors.Is(err, core.ErrValidation) || ctx.Err() != nil {
			return 0, err
		}
		return 0, core.ValidationError(core.ErrUnsupportedFormat, err.Error())
	}

	length := utf8.RuneCountInString(strings.TrimSpace(extraction.Text))
	if length < w.minTextLength {
		return 0, core.ValidationError(core.ErrTextTooShort,
			fmt.Sprintf("found %d characters, need at least %d", length, w.minTextLength))
	}

	params := chunking.SelectParamsFrom(w.bands, utf8.RuneCountInString(extraction.Text))
	chunks := chunking.Split(extraction.Text, params)
	if len(chunks) == 0 {
		return 0, core.ValidationError(core.ErrNoChunks, "")
	}
	w.notify(ctx, doc.OwnerID, notify.JobProgress(job, progressChunked,
		fmt.Sprintf("split into %d chunks", len(chunks))))

	embeddings, err := w.embed(ctx, job, doc.OwnerID, chunks)
	if err != nil {
		return 0, err
	}

	namespace := core.OwnerNamespace(doc.OwnerID)
	now := time.Now().UTC()
	vectors := make([]core.Vector, len(chunks))
	for i, c := range chunks {
		vectors[i] = core.Vector{
			ID:     core.ChunkID(doc.ID, c.Index),
			Values: embeddings[i],
			Metadata: core.ChunkMetadata{
				DocumentID:     doc.ID,
				OwnerNamespace: namespace,
				FileName:       doc.FileName,
				ChunkIndex:     c.Index,
				Text:           c.Text,
				Page:           extraction.PageAt(c.Offset),
				CreatedAt:      now,
			},
		}
	}

	err = w.retry.Do(ctx, w.logger, func() error {
		if err := w.store.Upsert(ctx, namespace, vectors); err != nil {
			return core.ExternalServiceError("vector store", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// embed returns one normalized vector per chunk, in chunk order.
// Chunks split across several pieces get the average of their pieces.
func (w *Worker) embed(ctx context.Context, job *core.Job, ownerID string, chunks []chunking.Chunk) ([][]float32, error) {
	batches, err := chunking.PlanBatches(chunks, w.limits)
	if err != nil {
		return nil, err
	}

	parts := make([][][]float32, len(chunks))
	for i, batch := range batches {
		var out [][]float32
		err := w.retry.Do(ctx, w.logger, func() error {
			var err error
			out, err = w.embedder.EmbedTexts(ctx, batch.Texts())
			if err != nil {
				return core.ExternalServiceError("embedding", err)
			}
			if len(out) != len(batch.Pieces) {
				return core.ExternalServiceError("embedding",
					fmt.Errorf("got %d vectors for %d texts", len(out), len(batch.Pieces)))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		for j, piece := range batch.Pieces {
			parts[piece.ChunkIndex] = append(parts[piece.ChunkIndex], out[j])
		}

		progress := progressChunked + (progressEmbedded-progressChunked)*(i+1)/len(batches)
		w.notify(ctx, ownerID, notify.JobProgress(job, progress,
			fmt.Sprintf("embedded batch %d of %d", i+1, len(batches))))
	}

	vectors := make([][]float32, len(chunks))
	for i, p := range parts {
		v, err := ai.AverageVectors(p)
		if err != nil {
			return nil, core.ExternalServiceError("embedding", err)
		}
		if len(v) == 0 {
			return nil, core.ExternalServiceError("embedding", fmt.Errorf("no vector for chunk %d", i))
		}
		vectors[i] = v
	}
	return vectors, nil
}

// complete marks job completed, then the document. A job that was already
// finished elsewhere, such as by the reaper, leaves the document alone.
func (w *Worker) complete(ctx context.Context, job *core.Job, doc *core.Document, count int, logger *slog.Logger, elapsed time.Duration) error {
	// Bookkeeping must land even if the worker is being stopped.
	ctx = context.WithoutCancel(ctx)

	if _, err := w.queue.UpdateStatus(ctx, job.ID, core.JobStatusCompleted, ""); err != nil {
		if errors.Is(err, core.ErrInvalidTransition) {
			logger.Warn("job already finished, discarding result", "err", err)
			return nil
		}
		return w.fail(ctx, job, doc, core.ExternalServiceError("job queue", err))
	}

	now := time.Now().UTC()
	doc.ProcessingStatus = core.ProcessingStatusCompleted
	doc.ChunkCount = count
	doc.CompletedAt = &now
	if err := w.documents.UpdateDocumentForJob(ctx, doc, job.ID); err != nil {
		if errors.Is(err, storage.ErrJobSuperseded) {
			logger.Warn("document taken over by another job", "err", err)
			return nil
		}
		logger.Error("failed to mark document completed", "err", err)
		return core.ExternalServiceError("document store", err)
	}

	w.notify(ctx, doc.OwnerID, notify.DocumentProcessed(doc, ""))
	logger.Info("document processed", "chunks", count, "elapsed", elapsed)
	return nil
}

// fail records cause on the job and document and notifies the owner.
// doc may be nil when it has not been loaded yet. Nothing is written when
// the job already reached a terminal status or the document moved on to
// another job.
func (w *Worker) fail(ctx context.Context, job *core.Job, doc *core.Document, cause error) error {
	ctx = context.WithoutCancel(ctx)
	msg := core.UserMessage(cause)
	logger := w.logger.With("jobID", job.ID, "documentID", job.Payload.DocumentID)

	if _, err := w.queue.UpdateStatus(ctx, job.ID, core.JobStatusFailed, msg); err != nil {
		if errors.Is(err, core.ErrInvalidTransition) {
			logger.Warn("job already finished, dropping failure", "cause", cause)
			return cause
		}
		logger.Error("failed to mark job failed", "err", err)
	}

	if doc == nil {
		if loaded, err := w.documents.GetDocument(ctx, job.Payload.DocumentID); err == nil {
			doc = loaded
		}
	}
	if doc != nil {
		now := time.Now().UTC()
		doc.ProcessingStatus = core.ProcessingStatusFailed
		doc.ErrorMessage = msg
		doc.CompletedAt = &now
		if err := w.documents.UpdateDocumentForJob(ctx, doc, job.ID); err != nil {
			if errors.Is(err, storage.ErrJobSuperseded) {
				logger.Warn("document taken over by another job", "err", err)
				return cause
			}
			logger.Error("failed to mark document failed", "err", err)
		}
	} else {
		doc = &core.Document{ID: job.Payload.DocumentID, FileName: job.Payload.FileName, JobID: job.ID}
	}

	w.notify(ctx, job.Payload.OwnerID, notify.DocumentProcessed(doc, msg))
	return cause
}

func (w *Worker) notify(ctx context.Context, ownerID string, msg notify.Message) {
	if w.notifier == nil {
		return
	}
	if !w.notifier.SendToOwner(ctx, ownerID, msg) {
		w.logger.Debug("notification not delivered", "owner", ownerID, "type", msg.Type)
	}
}
