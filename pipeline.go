package docpipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/ingestion"
	"github.com/poiesic/docpipe/notify"
	"github.com/poiesic/docpipe/references"
	"github.com/poiesic/docpipe/search"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/vectorstore"
)

// Deps are the collaborators a Pipeline is built on.
type Deps struct {
	Queue     storage.JobQueue
	Documents storage.DocumentRepository
	Blobs     storage.BlobStore
	Embedder  ai.Embedder
	Vectors   vectorstore.Store
}

// Pipeline is the entry point for uploads, status polling, deletion,
// workers and retrieval.
type Pipeline struct {
	queue     storage.JobQueue
	documents storage.DocumentRepository
	blobs     storage.BlobStore
	embedder  ai.Embedder
	vectors   vectorstore.Store
	manager   *notify.Manager
	retriever *search.Retriever

	maxDocumentBytes int64
	workerOpts       []ingestion.Option
	retrieverOpts    []search.Option
	closers          []io.Closer
	base             *slog.Logger
	logger           *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithMaxDocumentBytes bounds upload size. Zero disables the bound.
func WithMaxDocumentBytes(n int64) Option {
	return func(p *Pipeline) error {
		if n < 0 {
			return fmt.Errorf("max document bytes must not be negative: %d", n)
		}
		p.maxDocumentBytes = n
		return nil
	}
}

// WithManager sets the notification manager. Default is a new manager.
func WithManager(m *notify.Manager) Option {
	return func(p *Pipeline) error {
		if m != nil {
			p.manager = m
		}
		return nil
	}
}

// WithWorkerOptions sets options applied to every worker the pipeline builds.
func WithWorkerOptions(opts ...ingestion.Option) Option {
	return func(p *Pipeline) error {
		p.workerOpts = append(p.workerOpts, opts...)
		return nil
	}
}

// WithRetrieverOptions sets options for the retrieval path.
func WithRetrieverOptions(opts ...search.Option) Option {
	return func(p *Pipeline) error {
		p.retrieverOpts = append(p.retrieverOpts, opts...)
		return nil
	}
}

// WithCloser registers a resource released by Close, in reverse order of
// registration.
func WithCloser(c io.Closer) Option {
	return func(p *Pipeline) error {
		if c != nil {
			p.closers = append(p.closers, c)
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// DefaultMaxDocumentBytes is the upload size limit.
const DefaultMaxDocumentBytes = 50 << 20

// New creates a pipeline over the given collaborators.
func New(deps Deps, opts ...Option) (*Pipeline, error) {
	switch {
	case deps.Queue == nil:
		return nil, ErrQueueRequired
	case deps.Documents == nil:
		return nil, ErrDocumentsRequired
	case deps.Blobs == nil:
		return nil, ErrBlobsRequired
	case deps.Embedder == nil:
		return nil, ErrEmbedderRequired
	case deps.Vectors == nil:
		return nil, ErrVectorStoreRequired
	}

	p := &Pipeline{
		queue:            deps.Queue,
		documents:        deps.Documents,
		blobs:            deps.Blobs,
		embedder:         deps.Embedder,
		vectors:          deps.Vectors,
		maxDocumentBytes: DefaultMaxDocumentBytes,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.base = p.logger
	if p.manager == nil {
		p.manager = notify.NewManager(notify.WithLogger(p.base))
	}

	retriever, err := search.NewRetriever(p.embedder, p.vectors,
		append([]search.Option{search.WithLogger(p.base)}, p.retrieverOpts...)...)
	if err != nil {
		return nil, err
	}
	p.retriever = retriever
	p.logger = p.base.With("component", "pipeline")
	return p, nil
}

// Close releases every registered resource.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			p.logger.Error("error closing resource", "err", err)
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Notifications returns the manager client connections register with.
func (p *Pipeline) Notifications() *notify.Manager {
	return p.manager
}

// Queue returns the job queue.
func (p *Pipeline) Queue() storage.JobQueue {
	return p.queue
}

// Upload stores data as a new document owned by ownerID and enqueues it for
// processing. An empty mimeType is guessed from the file name. The returned
// document is queued; progress arrives through notifications or polling.
func (p *Pipeline) Upload(ctx context.Context, ownerID, fileName string, data []byte, mimeType string) (*core.Document, error) {
	if err := core.ValidateUpload(ownerID, fileName, int64(len(data)), p.maxDocumentBytes); err != nil {
		return nil, err
	}
	if mimeType == "" {
		mimeType = core.MimeTypeFromFileName(fileName)
	}

	ref, err := p.blobs.PutBlob(ctx, data)
	if err != nil {
		return nil, core.ExternalServiceError("blob store", err)
	}

	doc := &core.Document{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		FileName:         fileName,
		FileSize:         int64(len(data)),
		MimeType:         mimeType,
		BlobRef:          ref,
		ProcessingStatus: core.ProcessingStatusQueued,
		JobID:            uuid.NewString(),
	}
	if err := p.documents.AddDocument(ctx, doc); err != nil {
		p.releaseBlob(ctx, ref)
		return nil, core.ExternalServiceError("document store", err)
	}

	if err := p.enqueue(ctx, doc); err != nil {
		p.logger.Error("enqueue failed, rolling back upload", "documentID", doc.ID, "err", err)
		cleanup := context.WithoutCancel(ctx)
		if derr := p.documents.DeleteDocument(cleanup, doc.ID); derr != nil {
			p.logger.Error("failed to remove document after enqueue failure", "documentID", doc.ID, "err", derr)
		}
		p.releaseBlob(cleanup, ref)
		return nil, err
	}

	p.logger.Info("document uploaded", "documentID", doc.ID, "owner", ownerID, "file", fileName, "bytes", doc.FileSize, "jobID", doc.JobID)
	return doc, nil
}

// Reprocess enqueues a new job for an existing document. Its vectors are
// overwritten in place when the job completes.
func (p *Pipeline) Reprocess(ctx context.Context, ownerID, documentID string) (*core.Document, error) {
	doc, err := p.ownedDocument(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ProcessingStatus == core.ProcessingStatusProcessing {
		return nil, core.ValidationError(ErrDocumentBusy, documentID)
	}

	doc.ProcessingStatus = core.ProcessingStatusQueued
	doc.ErrorMessage = ""
	doc.StartedAt = nil
	doc.CompletedAt = nil
	doc.JobID = uuid.NewString()
	if err := p.documents.UpdateDocument(ctx, doc); err != nil {
		return nil, core.ExternalServiceError("document store", err)
	}

	if err := p.enqueue(ctx, doc); err != nil {
		doc.ProcessingStatus = core.ProcessingStatusFailed
		doc.ErrorMessage = core.UserMessage(err)
		if uerr := p.documents.UpdateDocument(context.WithoutCancel(ctx), doc); uerr != nil {
			p.logger.Error("failed to record enqueue failure", "documentID", doc.ID, "err", uerr)
		}
		return nil, err
	}
	p.logger.Info("document requeued", "documentID", doc.ID, "jobID", doc.JobID)
	return doc, nil
}

// enqueue submits a job under the id already recorded on doc, so a worker
// never sees a document that does not name its job.
func (p *Pipeline) enqueue(ctx context.Context, doc *core.Document) error {
	job := &core.Job{
		ID:   doc.JobID,
		Type: core.JobTypeVectorizeDocument,
		Payload: core.JobPayload{
			DocumentID:  doc.ID,
			RawBytesRef: doc.BlobRef,
			FileName:    doc.FileName,
			MimeType:    doc.MimeType,
			OwnerID:     doc.OwnerID,
		},
	}
	if _, err := p.queue.Enqueue(ctx, job); err != nil {
		return core.ExternalServiceError("job queue", err)
	}
	return nil
}

// DocumentStatus returns the polling view of one of the owner's documents.
func (p *Pipeline) DocumentStatus(ctx context.Context, ownerID, documentID string) (core.DocumentStatus, error) {
	doc, err := p.ownedDocument(ctx, ownerID, documentID)
	if err != nil {
		return core.DocumentStatus{}, err
	}
	return doc.Status(), nil
}

// ListDocuments returns the owner's documents, newest first.
func (p *Pipeline) ListDocuments(ctx context.Context, ownerID string) ([]*core.Document, error) {
	docs, err := p.documents.ListDocumentsByOwner(ctx, ownerID)
	if err != nil {
		return nil, core.ExternalServiceError("document store", err)
	}
	return docs, nil
}

// JobStatus returns a job record.
func (p *Pipeline) JobStatus(ctx context.Context, jobID string) (*core.Job, error) {
	job, err := p.queue.GetStatus(ctx, jobID)
	if err != nil {
		return nil, core.ExternalServiceError("job queue", err)
	}
	if job == nil {
		return nil, core.NotFoundError("job", jobID)
	}
	return job, nil
}

// DeleteDocument removes a document with its vectors and its stored bytes.
// Documents owned by someone else are reported as not found.
func (p *Pipeline) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	doc, err := p.ownedDocument(ctx, ownerID, documentID)
	if err != nil {
		return err
	}
	if doc.ProcessingStatus == core.ProcessingStatusProcessing {
		return core.ValidationError(ErrDocumentBusy, documentID)
	}

	if ids := core.ChunkIDs(doc.ID, 0, doc.ChunkCount); len(ids) > 0 {
		if err := p.vectors.Delete(ctx, core.OwnerNamespace(doc.OwnerID), ids); err != nil {
			return core.ExternalServiceError("vector store", err)
		}
	}
	if err := p.documents.DeleteDocument(ctx, doc.ID); err != nil {
		return core.ExternalServiceError("document store", err)
	}
	p.releaseBlob(ctx, doc.BlobRef)

	p.logger.Info("document deleted", "documentID", doc.ID, "owner", ownerID, "chunks", doc.ChunkCount)
	return nil
}

func (p *Pipeline) ownedDocument(ctx context.Context, ownerID, documentID string) (*core.Document, error) {
	doc, err := p.documents.GetDocument(ctx, documentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, core.NotFoundError("document", documentID)
	}
	if err != nil {
		return nil, core.ExternalServiceError("document store", err)
	}
	if doc.OwnerID != ownerID {
		return nil, core.NotFoundError("document", documentID)
	}
	return doc, nil
}

func (p *Pipeline) releaseBlob(ctx context.Context, ref string) {
	if err := p.blobs.DeleteBlob(ctx, ref); err != nil {
		p.logger.Warn("failed to release blob", "ref", ref, "err", err)
	}
}

// NewWorker builds a worker over the pipeline's stores that reports to its
// notification manager.
func (p *Pipeline) NewWorker(opts ...ingestion.Option) (*ingestion.Worker, error) {
	all := make([]ingestion.Option, 0, len(p.workerOpts)+len(opts)+2)
	all = append(all, ingestion.WithNotifier(p.manager), ingestion.WithLogger(p.base))
	all = append(all, p.workerOpts...)
	all = append(all, opts...)
	return ingestion.NewWorker(p.queue, p.documents, p.blobs, p.embedder, p.vectors, all...)
}

// NewGroup builds n workers sharing the queue.
func (p *Pipeline) NewGroup(n int, opts ...ingestion.Option) (*ingestion.Group, error) {
	workers := make([]*ingestion.Worker, 0, n)
	for range n {
		w, err := p.NewWorker(opts...)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return ingestion.NewGroup(workers, p.base)
}

// NewReaper builds a stale job reaper over the pipeline's stores.
func (p *Pipeline) NewReaper(config ingestion.ReaperConfig) (*ingestion.Reaper, error) {
	return ingestion.NewReaper(p.queue, p.documents, p.manager, config, p.base)
}

// Search returns the context and references for query over the owner's
// documents.
func (p *Pipeline) Search(ctx context.Context, ownerID, query string) (references.Result, error) {
	return p.retriever.Retrieve(ctx, ownerID, query)
}

// Context is Search for callers about to generate an answer: failures are
// logged and yield an empty result.
func (p *Pipeline) Context(ctx context.Context, ownerID, query string) references.Result {
	return p.retriever.Context(ctx, ownerID, query)
}

// WaitForDocument polls until the document reaches a terminal status or ctx
// ends.
func (p *Pipeline) WaitForDocument(ctx context.Context, ownerID, documentID string, interval time.Duration) (core.DocumentStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := p.DocumentStatus(ctx, ownerID, documentID)
		if err != nil {
			return status, err
		}
		if status.Status == core.ProcessingStatusCompleted || status.Status == core.ProcessingStatusFailed {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}
