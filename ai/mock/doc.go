// Package mock provides a test double for ai.Embedder.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedder()
//	vectors, err := embedder.EmbedTexts(ctx, []string{"a", "b"})
//
//	// Custom behavior injection
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("provider down")
//	}
//
//	// Inspect what was sent
//	count := embedder.CallCount()
//	batches := embedder.Batches()
//
// The default behavior returns deterministic unit vectors derived from a
// hash of each text, so identical texts embed identically and a query
// equal to a stored chunk scores a similarity of 1.
package mock
