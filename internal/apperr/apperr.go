// Package apperr defines the error taxonomy shared by the retrieval engine.
//
// Validation failures (ErrInvalidInput, ErrInvalidFilter) are caller mistakes and
// should not be retried. ErrEmbeddingProvider is the only class originating from an
// external dependency and the only one worth retrying. An empty result set is not
// an error and has no sentinel here.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for malformed requests (empty embedding text, non-positive top_k).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidFilter is returned for structurally invalid filter values.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrDimensionMismatch is returned when vectors of different length are compared or stored.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEmbeddingProvider is matched by every failure of the embedding collaborator.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrTimeout is matched when a retrieval or provider call ran out of time.
	ErrTimeout = errors.New("timeout")

	// ErrNotReady is returned when the catalog has not finished loading.
	ErrNotReady = errors.New("catalog not ready")
)

// InvalidInput wraps ErrInvalidInput with a formatted detail message.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// InvalidFilter wraps ErrInvalidFilter with a formatted detail message.
func InvalidFilter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFilter, fmt.Sprintf(format, args...))
}

// DimensionMismatch reports two vector lengths that should have been equal.
func DimensionMismatch(want, got int) error {
	return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, want, got)
}

// ProviderError describes a failed call to the embedding collaborator.
type ProviderError struct {
	Provider string
	Op       string
	Timeout  bool
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("embedding provider %s: %s failed", e.Provider, e.Op)
	if e.Timeout {
		msg += " (timeout)"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is makes every ProviderError match ErrEmbeddingProvider, and timeouts match ErrTimeout.
func (e *ProviderError) Is(target error) bool {
	if target == ErrEmbeddingProvider {
		return true
	}
	return e.Timeout && target == ErrTimeout
}

// IsRetryable reports whether err belongs to the retryable class.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbeddingProvider)
}
