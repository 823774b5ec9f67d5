package chromem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/vectorstore"
)

// Metadata keys. chromem stores metadata as strings; the chunk text is the document content.
const (
	keyDocumentID     = "docId"
	keyOwnerNamespace = "ownerNamespace"
	keyFileName       = "fileName"
	keyChunkIndex     = "chunkIndex"
	keyPage           = "page"
	keyCreatedAt      = "createdAt"
)

// errNoEmbedding is returned if chromem is ever asked to embed text itself.
var errNoEmbedding = errors.New("chromem store only accepts precomputed embeddings")

// Store implements vectorstore.Store with one chromem collection per namespace.
type Store struct {
	db     *chromem.DB
	logger *slog.Logger
}

var _ vectorstore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore opens a store. An empty path keeps everything in memory;
// otherwise collections are persisted under path.
func NewStore(path string, compress bool, opts ...Option) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "chromem-store")
	return s, nil
}

func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

func (s *Store) collection(namespace string, create bool) (*chromem.Collection, error) {
	if !create {
		return s.db.GetCollection(namespace, rejectEmbedding), nil
	}
	return s.db.GetOrCreateCollection(namespace, map[string]string{"hnsw:space": "cosine"}, rejectEmbedding)
}

// Upsert adds vectors to the namespace collection, replacing ids that exist.
func (s *Store) Upsert(ctx context.Context, namespace string, vectors []core.Vector) error {
	if err := vectorstore.ValidateUpsert(namespace, vectors); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	c, err := s.collection(namespace, true)
	if err != nil {
		return fmt.Errorf("collection %s: %w", namespace, err)
	}

	ids := make([]string, len(vectors))
	embeddings := make([][]float32, len(vectors))
	metadatas := make([]map[string]string, len(vectors))
	contents := make([]string, len(vectors))
	for i, v := range vectors {
		ids[i] = v.ID
		embeddings[i] = v.Values
		metadatas[i] = encodeMetadata(v.Metadata)
		contents[i] = v.Metadata.Text
	}

	if err := c.Add(ctx, ids, embeddings, metadatas, contents); err != nil {
		return fmt.Errorf("add to %s: %w", namespace, err)
	}
	s.logger.Debug("vectors upserted", "namespace", namespace, "count", len(vectors))
	return nil
}

// Query returns the topK closest vectors in the namespace.
func (s *Store) Query(ctx context.Context, namespace string, vector []float32, topK int, includeMetadata bool) ([]core.SearchResult, error) {
	if len(vector) == 0 {
		return nil, vectorstore.ErrEmptyVector
	}
	c, err := s.collection(namespace, false)
	if err != nil || c == nil {
		return nil, err
	}

	n := min(topK, c.Count())
	if n <= 0 {
		return nil, nil
	}
	found, err := c.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", namespace, err)
	}

	results := make([]core.SearchResult, 0, len(found))
	for _, r := range found {
		res := core.SearchResult{ID: r.ID, Score: r.Similarity}
		if includeMetadata {
			res.Metadata = decodeMetadata(r.Metadata, r.Content)
		}
		results = append(results, res)
	}
	return results, nil
}

// Delete removes ids from the namespace collection.
func (s *Store) Delete(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	c, err := s.collection(namespace, false)
	if err != nil || c == nil {
		return err
	}
	if err := c.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete from %s: %w", namespace, err)
	}
	return nil
}

// Close is a no-op; persistent collections are written on every change.
func (s *Store) Close() error {
	return nil
}

func encodeMetadata(md core.ChunkMetadata) map[string]string {
	return map[string]string{
		keyDocumentID:     md.DocumentID,
		keyOwnerNamespace: md.OwnerNamespace,
		keyFileName:       md.FileName,
		keyChunkIndex:     strconv.Itoa(md.ChunkIndex),
		keyPage:           strconv.Itoa(md.Page),
		keyCreatedAt:      md.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeMetadata(m map[string]string, content string) core.ChunkMetadata {
	md := core.ChunkMetadata{
		DocumentID:     m[keyDocumentID],
		OwnerNamespace: m[keyOwnerNamespace],
		FileName:       m[keyFileName],
		Text:           content,
	}
	md.ChunkIndex, _ = strconv.Atoi(m[keyChunkIndex])
	md.Page, _ = strconv.Atoi(m[keyPage])
	md.CreatedAt, _ = time.Parse(time.RFC3339Nano, m[keyCreatedAt])
	return md
}
