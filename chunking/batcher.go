package chunking

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	// DefaultTokenCeiling is the embedding provider's hard per-request limit.
	DefaultTokenCeiling = 8192

	// DefaultSafetyThreshold keeps batches clear of the ceiling to absorb
	// estimation error.
	DefaultSafetyThreshold = 7500

	charsPerToken = 4
)

// ErrInvalidLimits indicates a safety threshold that is not below the ceiling.
var ErrInvalidLimits = errors.New("invalid token limits")

// Limits bound the estimated tokens sent in one embedding request.
type Limits struct {
	Ceiling         int
	SafetyThreshold int
}

// DefaultLimits returns the default ceiling and safety threshold.
func DefaultLimits() Limits {
	return Limits{Ceiling: DefaultTokenCeiling, SafetyThreshold: DefaultSafetyThreshold}
}

// Validate checks that 0 < SafetyThreshold < Ceiling.
func (l Limits) Validate() error {
	if l.SafetyThreshold <= 1 || l.SafetyThreshold >= l.Ceiling {
		return fmt.Errorf("%w: threshold %d must be above 1 and below ceiling %d",
			ErrInvalidLimits, l.SafetyThreshold, l.Ceiling)
	}
	return nil
}

// EstimateTokens approximates the token count of text as ceil(runes/4).
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + charsPerToken - 1) / charsPerToken
}

// Piece is the unit sent to the embedder. A chunk that fits the threshold
// is a single piece with Part 0; an oversized chunk becomes several parts.
type Piece struct {
	ChunkIndex int
	Part       int
	Text       string
	Tokens     int
}

// Batch is one embedding request.
type Batch struct {
	Pieces []Piece
	Tokens int
}

// Texts returns the piece texts in order.
func (b Batch) Texts() []string {
	texts := make([]string, len(b.Pieces))
	for i, p := range b.Pieces {
		texts[i] = p.Text
	}
	return texts
}

// PlanBatches packs chunks into batches whose estimated token total stays
// strictly below limits.SafetyThreshold. Chunk order is preserved. A chunk
// whose estimate alone reaches the threshold is split into parts that each
// fit; every chunk appears in the plan.
func PlanBatches(chunks []Chunk, limits Limits) ([]Batch, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	maxPieceRunes := (limits.SafetyThreshold - 1) * charsPerToken

	var (
		batches []Batch
		cur     Batch
	)
	add := func(p Piece) {
		if len(cur.Pieces) > 0 && cur.Tokens+p.Tokens >= limits.SafetyThreshold {
			batches = append(batches, cur)
			cur = Batch{}
		}
		cur.Pieces = append(cur.Pieces, p)
		cur.Tokens += p.Tokens
	}

	for _, c := range chunks {
		tokens := EstimateTokens(c.Text)
		if tokens < limits.SafetyThreshold {
			add(Piece{ChunkIndex: c.Index, Text: c.Text, Tokens: tokens})
			continue
		}
		for i, part := range splitToFit(c.Text, maxPieceRunes) {
			add(Piece{ChunkIndex: c.Index, Part: i, Text: part.text, Tokens: EstimateTokens(part.text)})
		}
	}
	if len(cur.Pieces) > 0 {
		batches = append(batches, cur)
	}
	return batches, nil
}
