package chunking

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 1, EstimateTokens("ßßßß"))
}

func TestLimitsValidate(t *testing.T) {
	assert.NoError(t, DefaultLimits().Validate())
	assert.ErrorIs(t, Limits{Ceiling: 100, SafetyThreshold: 100}.Validate(), ErrInvalidLimits)
	assert.ErrorIs(t, Limits{Ceiling: 100, SafetyThreshold: 0}.Validate(), ErrInvalidLimits)

	_, err := PlanBatches(nil, Limits{Ceiling: 10, SafetyThreshold: 20})
	assert.ErrorIs(t, err, ErrInvalidLimits)
}

func TestPlanBatchesStayBelowThreshold(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	limits := Limits{Ceiling: 1000, SafetyThreshold: 800}

	for round := 0; round < 50; round++ {
		var chunks []Chunk
		for i := 0; i < 1+rng.Intn(40); i++ {
			chunks = append(chunks, Chunk{Index: i, Text: strings.Repeat("a", 1+rng.Intn(4000))})
		}

		batches, err := PlanBatches(chunks, limits)
		require.NoError(t, err)

		covered := make(map[int]int)
		for _, b := range batches {
			sum := 0
			for _, p := range b.Pieces {
				sum += EstimateTokens(p.Text)
				covered[p.ChunkIndex] += len(p.Text)
			}
			assert.Equal(t, sum, b.Tokens)
			assert.Less(t, b.Tokens, limits.SafetyThreshold)
			assert.Less(t, b.Tokens, limits.Ceiling)
		}
		for _, c := range chunks {
			assert.Equal(t, len(c.Text), covered[c.Index], "chunk %d lost text", c.Index)
		}
	}
}

func TestPlanBatchesSplitsOversizeChunk(t *testing.T) {
	limits := Limits{Ceiling: 120, SafetyThreshold: 100}
	big := Chunk{Index: 3, Text: strings.Repeat("lorem ipsum ", 100)}

	batches, err := PlanBatches([]Chunk{big}, limits)
	require.NoError(t, err)

	var parts []Piece
	for _, b := range batches {
		parts = append(parts, b.Pieces...)
	}
	require.Greater(t, len(parts), 1)
	for i, p := range parts {
		assert.Equal(t, 3, p.ChunkIndex)
		assert.Equal(t, i, p.Part)
		assert.Less(t, p.Tokens, limits.SafetyThreshold)
	}
}

func TestPlanBatchesPreservesOrder(t *testing.T) {
	chunks := []Chunk{{Index: 0, Text: "alpha"}, {Index: 1, Text: "beta"}, {Index: 2, Text: "gamma"}}
	batches, err := PlanBatches(chunks, DefaultLimits())
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, batches[0].Texts())
}
