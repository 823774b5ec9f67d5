package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/poiesic/docpipe/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
}

// newEmbeddingServer answers /v1/embeddings with one vector per input,
// whose first element is the input index.
func newEmbeddingServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := embeddingResponse{Object: "list", Model: req.Model}
		for i := range req.Input {
			resp.Data = append(resp.Data, embeddingData{
				Object:    "embedding",
				Embedding: []float32{float32(i), 1, 0},
				Index:     i,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedderEmbedTexts(t *testing.T) {
	var requests atomic.Int32
	srv := newEmbeddingServer(t, &requests)

	embedder, err := NewEmbedder(ai.NewConfig(
		ai.WithEmbeddingHost(srv.URL),
		ai.WithEmbeddingModel("test-model"),
	))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, float32(2), vectors[2][0])
	assert.Equal(t, int32(1), requests.Load())

	vec, err := embedder.EmbedText(context.Background(), "single")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
}

func TestEmbedderEmptyInput(t *testing.T) {
	var requests atomic.Int32
	srv := newEmbeddingServer(t, &requests)

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(srv.URL)))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, requests.Load())
}

func TestEmbedderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(srv.URL)))
	require.NoError(t, err)

	_, err = embedder.EmbedTexts(context.Background(), []string{"alpha"})
	assert.Error(t, err)
}

func TestEmbedderRateLimitHonoursContext(t *testing.T) {
	var requests atomic.Int32
	srv := newEmbeddingServer(t, &requests)

	embedder, err := NewEmbedder(ai.NewConfig(
		ai.WithEmbeddingHost(srv.URL),
		ai.WithRateLimit(0.001, 1),
	))
	require.NoError(t, err)

	_, err = embedder.EmbedTexts(context.Background(), []string{"first"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = embedder.EmbedTexts(ctx, []string{"second"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), requests.Load())
}

func TestNewEmbedderInvalidConfig(t *testing.T) {
	_, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingModel("")))
	assert.Error(t, err)
}
