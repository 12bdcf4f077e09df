// Package llm provides the text generator used to phrase recommendations
// from an assembled context.
package llm

import (
	"context"
	"errors"
)

// ErrGeneration is matched by every failure of a Generator.
var ErrGeneration = errors.New("generation failed")

// GenerateOptions configures a generation request.
type GenerateOptions struct {
	// Model overrides the client's default model.
	Model string

	// SystemPrompt sets the system-level instructions for the model.
	SystemPrompt string

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float32

	// MaxTokens limits the response length. Zero means no limit.
	MaxTokens int
}

// Generator produces text for a prompt.
type Generator interface {
	// Generate blocks until the full response is received or ctx is done.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Name identifies the backing model, for logs.
	Name() string
}
