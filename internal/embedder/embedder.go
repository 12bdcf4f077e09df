// Package embedder provides the text-to-vector collaborator used by the catalog
// and the recommendation service.
//
// Implementations must be safe for concurrent use. Empty input text is rejected
// with apperr.ErrInvalidInput; failures of a remote provider surface as
// *apperr.ProviderError so callers can tell them apart from an empty result.
package embedder

import (
	"context"
	"strings"

	"github.com/knoguchi/dinerag/internal/apperr"
)

// Embedder defines the interface for text embedding services.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for multiple text inputs.
	// Returns a slice of embeddings in the same order as the input texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}

// KnownDimensions maps Ollama embedding model names to their vector size.
var KnownDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
}

// DimensionFor returns the vector size of a known model, or fallback.
func DimensionFor(modelName string, fallback int) int {
	if dim, ok := KnownDimensions[modelName]; ok {
		return dim
	}
	return fallback
}

// validateText rejects input that cannot be embedded.
func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperr.InvalidInput("embedding text is empty")
	}
	return nil
}
