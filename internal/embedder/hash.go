package embedder

import (
	"context"
	"math"
)

const (
	// DefaultHashDimension matches the vector size of common hosted embedding models.
	DefaultHashDimension = 1536

	hashModelName = "hash-sine"
)

// HashEmbedder is a deterministic, dependency-free reference embedder.
// Component i of the vector is sin(seed + i), where seed is the sum of the
// text's code points. It carries no semantics beyond "same text, same vector"
// and exists so ranking can be exercised without a live provider.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a hash embedder producing vectors of the given size.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed returns the deterministic vector for text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	var seed int
	for _, r := range text {
		seed += int(r)
	}

	vec := make([]float32, e.dimension)
	for i := range vec {
		vec[i] = float32(math.Sin(float64(seed + i)))
	}
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimension returns the dimensionality of the embedding vectors.
func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model being used.
func (e *HashEmbedder) ModelName() string {
	return hashModelName
}

var _ Embedder = (*HashEmbedder)(nil)
