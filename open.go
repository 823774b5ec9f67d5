// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package docpipe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/openai"
	"github.com/poiesic/docpipe/chunking"
	"github.com/poiesic/docpipe/config"
	"github.com/poiesic/docpipe/ingestion"
	"github.com/poiesic/docpipe/search"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/poiesic/docpipe/vectorstore"
	"github.com/poiesic/docpipe/vectorstore/chromem"
	"github.com/poiesic/docpipe/vectorstore/pgvector"
)

// Open builds a pipeline from configuration: a badger database for jobs,
// documents and blobs, the configured vector store and an OpenAI-compatible
// embedder. Extra options are applied after those derived from cfg.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := slog.Default()

	backend, err := badger.OpenBackend(cfg.Storage.Path, cfg.Storage.InMemory)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	queue, err := badger.NewJobQueue(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	vectors, err := openVectorStore(ctx, cfg.VectorStore, logger)
	if err != nil {
		queue.Close()
		backend.Close()
		return nil, err
	}

	embedder, err := openai.NewEmbedder(ai.NewConfig(
		ai.WithEmbeddingHost(cfg.Embedding.Host),
		ai.WithEmbeddingModel(cfg.Embedding.Model),
		ai.WithAPIKey(cfg.Embedding.APIKey()),
		ai.WithRateLimit(cfg.Embedding.RequestsPerSecond, cfg.Embedding.Burst),
	))
	if err != nil {
		vectors.Close()
		queue.Close()
		backend.Close()
		return nil, err
	}

	base := []Option{
		WithCloser(backend),
		WithCloser(queue),
		WithCloser(vectors),
		WithMaxDocumentBytes(cfg.Limits.MaxDocumentBytes),
		WithWorkerOptions(
			ingestion.WithDequeueTimeout(cfg.Worker.DequeueTimeout),
			ingestion.WithIdleSleep(cfg.Worker.IdleSleep),
			ingestion.WithMinTextLength(cfg.Worker.MinTextLength),
			ingestion.WithLimits(chunking.Limits{
				Ceiling:         cfg.Limits.TokenCeiling,
				SafetyThreshold: cfg.Limits.SafetyThreshold,
			}),
			ingestion.WithRetryPolicy(ingestion.RetryPolicy{
				MaxAttempts: cfg.Worker.Retry.MaxAttempts,
				BaseDelay:   cfg.Worker.Retry.BaseDelay,
				MaxDelay:    cfg.Worker.Retry.MaxDelay,
			}),
		),
		WithRetrieverOptions(
			search.WithTopK(cfg.Search.TopK),
			search.WithThreshold(cfg.Search.Threshold),
		),
	}

	p, err := New(Deps{
		Queue:     queue,
		Documents: badger.NewDocumentRepository(backend),
		Blobs:     badger.NewBlobStore(backend),
		Embedder:  embedder,
		Vectors:   vectors,
	}, append(base, opts...)...)
	if err != nil {
		vectors.Close()
		queue.Close()
		backend.Close()
		return nil, err
	}
	return p, nil
}

func openVectorStore(ctx context.Context, cfg config.VectorStoreConfig, logger *slog.Logger) (vectorstore.Store, error) {
	switch cfg.Type {
	case config.VectorStoreChromem:
		return chromem.NewStore(cfg.Chromem.Path, cfg.Chromem.Compress, chromem.WithLogger(logger))
	case config.VectorStorePgvector:
		return pgvector.NewStore(ctx, cfg.Pgvector.DSN,
			pgvector.WithTable(cfg.Pgvector.Table),
			pgvector.WithDimension(cfg.Pgvector.Dimension),
			pgvector.WithLogger(logger),
		)
	default:
		return nil, fmt.Errorf("unknown vector store %q", cfg.Type)
	}
}

// ReaperConfig converts the reaper section of cfg.
func ReaperConfig(cfg config.ReaperConfig) ingestion.ReaperConfig {
	return ingestion.ReaperConfig{
		Interval:    cfg.Interval,
		StaleAfter:  cfg.StaleAfter,
		Requeue:     cfg.Requeue,
		MaxAttempts: cfg.MaxAttempts,
	}
}
