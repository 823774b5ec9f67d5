package ai

import (
	"errors"
	"math"
)

// ErrDimensionMismatch indicates vectors of different lengths.
var ErrDimensionMismatch = errors.New("vector dimensions differ")

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float32
	for _, val := range v {
		magnitude += val * val
	}
	magnitude = float32(math.Sqrt(float64(magnitude)))

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}

// AverageVectors returns the normalized element-wise mean of vectors.
func AverageVectors(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, nil
	}
	if len(vectors) == 1 {
		return NormalizeVector(vectors[0]), nil
	}

	dim := len(vectors[0])
	sum := make([]float32, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, ErrDimensionMismatch
		}
		for i, val := range v {
			sum[i] += val
		}
	}
	n := float32(len(vectors))
	for i := range sum {
		sum[i] /= n
	}
	return NormalizeVector(sum), nil
}
