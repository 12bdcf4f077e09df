// Package similarity provides vector similarity functions used for ranking.
package similarity

import (
	"math"

	"github.com/knoguchi/dinerag/internal/apperr"
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Vectors must have equal length. A zero-magnitude vector has similarity 0
// with everything, itself included.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, apperr.DimensionMismatch(len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// Rounding can push parallel vectors a hair past the bounds.
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	return score, nil
}
