package pgvector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/vectorstore"
)

const defaultTable = "chunk_vectors"

// ErrInvalidTable indicates a table name that is not a plain identifier.
var ErrInvalidTable = errors.New("invalid table name")

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store implements vectorstore.Store on PostgreSQL with pgvector.
// All namespaces share one table keyed by (namespace, id).
type Store struct {
	pool      *pgxpool.Pool
	table     string
	dimension int
	logger    *slog.Logger
}

var _ vectorstore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithTable sets the table name. Default is "chunk_vectors".
func WithTable(name string) Option {
	return func(s *Store) error {
		if !identifier.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrInvalidTable, name)
		}
		s.table = name
		return nil
	}
}

// WithDimension fixes the embedding column to n dimensions.
// Zero leaves the column unconstrained.
func WithDimension(n int) Option {
	return func(s *Store) error {
		if n < 0 {
			return fmt.Errorf("dimension must not be negative: %d", n)
		}
		s.dimension = n
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// NewStore connects to dsn, verifies the connection and creates the
// extension and table if they do not exist.
func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := &Store{table: defaultTable, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "pgvector-store")

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s.pool = pool
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	column := "vector"
	if s.dimension > 0 {
		column = fmt.Sprintf("vector(%d)", s.dimension)
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			namespace   TEXT NOT NULL,
			id          TEXT NOT NULL,
			embedding   %s NOT NULL,
			document_id TEXT NOT NULL,
			file_name   TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			page        INTEGER NOT NULL DEFAULT 0,
			content     TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (namespace, id)
		)`, s.table, column),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare schema: %w", err)
		}
	}
	return nil
}

// Upsert writes vectors in one batch, replacing rows with the same id.
func (s *Store) Upsert(ctx context.Context, namespace string, vectors []core.Vector) error {
	if err := vectorstore.ValidateUpsert(namespace, vectors); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(namespace, id, embedding, document_id, file_name, chunk_index, page, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (namespace, id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			document_id = EXCLUDED.document_id,
			file_name = EXCLUDED.file_name,
			chunk_index = EXCLUDED.chunk_index,
			page = EXCLUDED.page,
			content = EXCLUDED.content,
			created_at = EXCLUDED.created_at`, s.table)

	batch := &pgx.Batch{}
	for _, v := range vectors {
		md := v.Metadata
		batch.Queue(query,
			namespace, v.ID, pgv.NewVector(v.Values),
			md.DocumentID, md.FileName, md.ChunkIndex, md.Page, md.Text, md.CreatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range vectors {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert vector %d: %w", i, err)
		}
	}
	s.logger.Debug("vectors upserted", "namespace", namespace, "count", len(vectors))
	return nil
}

// Query orders the namespace by cosine distance to vector.
func (s *Store) Query(ctx context.Context, namespace string, vector []float32, topK int, includeMetadata bool) ([]core.SearchResult, error) {
	if len(vector) == 0 {
		return nil, vectorstore.ErrEmptyVector
	}
	if topK <= 0 {
		return nil, nil
	}

	columns := "id, 1 - (embedding <=> $2)"
	if includeMetadata {
		columns += ", document_id, file_name, chunk_index, page, content, created_at"
	}
	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE namespace = $1
		ORDER BY embedding <=> $2
		LIMIT $3`, columns, s.table)

	rows, err := s.pool.Query(ctx, query, namespace, pgv.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var results []core.SearchResult
	for rows.Next() {
		var (
			res   core.SearchResult
			score float64
		)
		dest := []any{&res.ID, &score}
		if includeMetadata {
			md := &res.Metadata
			dest = append(dest, &md.DocumentID, &md.FileName, &md.ChunkIndex, &md.Page, &md.Text, &md.CreatedAt)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan vector: %w", err)
		}
		res.Score = float32(score)
		if includeMetadata {
			res.Metadata.OwnerNamespace = namespace
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// Delete removes ids from the namespace.
func (s *Store) Delete(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1 AND id = ANY($2)`, s.table)
	if _, err := s.pool.Exec(ctx, query, namespace, ids); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
