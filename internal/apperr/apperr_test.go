package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestProviderError_Is(t *testing.T) {
	err := &ProviderError{Provider: "ollama", Op: "embed", Err: errors.New("connection refused")}

	if !errors.Is(err, ErrEmbeddingProvider) {
		t.Error("expected provider error to match ErrEmbeddingProvider")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("non-timeout provider error should not match ErrTimeout")
	}
	if !IsRetryable(fmt.Errorf("wrapped: %w", err)) {
		t.Error("expected wrapped provider error to be retryable")
	}
}

func TestProviderError_Timeout(t *testing.T) {
	err := &ProviderError{Provider: "ollama", Op: "embed", Timeout: true, Err: context.DeadlineExceeded}

	if !errors.Is(err, ErrTimeout) {
		t.Error("expected timeout provider error to match ErrTimeout")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected cause to be reachable through Unwrap")
	}
}

func TestValidationErrorsAreNotRetryable(t *testing.T) {
	for _, err := range []error{
		InvalidInput("top_k must be positive, got %d", 0),
		InvalidFilter("price_max %q is not a number", "abc"),
		DimensionMismatch(3, 4),
	} {
		if IsRetryable(err) {
			t.Errorf("%v should not be retryable", err)
		}
	}
}
