package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/knoguchi/dinerag/internal/apperr"
	"github.com/knoguchi/dinerag/internal/metrics"
)

// GuardConfig configures the resource limits placed in front of a provider.
type GuardConfig struct {
	// MaxInFlight caps concurrent calls to the provider (default: 4).
	MaxInFlight int

	// Timeout bounds each call. Zero disables the per-call deadline.
	Timeout time.Duration

	// RatePerSecond limits call rate. Zero or negative disables rate limiting.
	RatePerSecond float64

	// FailureThreshold is the number of consecutive failures that opens the
	// circuit (default: 5).
	FailureThreshold uint32

	// Cooldown is how long the circuit stays open before probing again (default: 30s).
	Cooldown time.Duration

	Logger *slog.Logger
}

// errCallerDone marks a call abandoned because the caller's context ended.
var errCallerDone = errors.New("caller context done")

// Guarded wraps an Embedder with bounded concurrency, an optional rate limit,
// per-call timeouts and a circuit breaker. Any failure of the wrapped provider
// is reported as *apperr.ProviderError. Invalid input passes through untouched,
// and a caller whose context ends gets ctx.Err() back unwrapped; neither
// counts against the breaker.
type Guarded struct {
	inner       Embedder
	maxInFlight int
	sem         *semaphore.Weighted
	limiter     *rate.Limiter
	timeout     time.Duration
	breaker     *gobreaker.CircuitBreaker[[]float32]
	logger      *slog.Logger
}

// NewGuarded wraps inner with the limits in cfg.
func NewGuarded(inner Embedder, cfg GuardConfig) *Guarded {
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = DefaultBatchConcurrency
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Guarded{
		inner:       inner,
		maxInFlight: maxInFlight,
		sem:         semaphore.NewWeighted(int64(maxInFlight)),
		timeout:     cfg.Timeout,
		logger:      logger,
	}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	g.breaker = gobreaker.NewCircuitBreaker[[]float32](gobreaker.Settings{
		Name:    "embedder-" + inner.ModelName(),
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Caller mistakes and abandoned calls say nothing about provider health.
			return err == nil ||
				errors.Is(err, apperr.ErrInvalidInput) ||
				errors.Is(err, errCallerDone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embedding circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return g
}

// Embed embeds a single text through the guard.
func (g *Guarded) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	provider := g.inner.ModelName()

	if err := g.sem.Acquire(ctx, 1); err != nil {
		metrics.RecordEmbeddingCall(provider, callerOutcome(err))
		return nil, err
	}
	defer g.sem.Release(1)

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				metrics.RecordEmbeddingCall(provider, callerOutcome(ctxErr))
				return nil, ctxErr
			}
			metrics.RecordEmbeddingCall(provider, metrics.OutcomeRateLimited)
			return nil, g.wrap("rate limit", err)
		}
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	vec, err := g.breaker.Execute(func() ([]float32, error) {
		vec, err := g.inner.Embed(callCtx, text)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerDone, ctx.Err())
		}
		return vec, err
	})
	switch {
	case err == nil:
		metrics.RecordEmbeddingCall(provider, metrics.OutcomeOK)
		return vec, nil
	case errors.Is(err, errCallerDone):
		metrics.RecordEmbeddingCall(provider, callerOutcome(ctx.Err()))
		return nil, ctx.Err()
	case errors.Is(err, apperr.ErrInvalidInput):
		metrics.RecordEmbeddingCall(provider, metrics.OutcomeInvalid)
		return nil, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordEmbeddingCall(provider, metrics.OutcomeCircuitOpen)
		return nil, g.wrap("embed", err)
	case errors.Is(err, context.DeadlineExceeded):
		metrics.RecordEmbeddingCall(provider, metrics.OutcomeTimeout)
		return nil, g.wrap("embed", err)
	default:
		metrics.RecordEmbeddingCall(provider, metrics.OutcomeProviderErr)
		return nil, g.wrap("embed", err)
	}
}

// EmbedBatch embeds texts concurrently, never exceeding the in-flight cap.
func (g *Guarded) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.maxInFlight)
	for i, text := range texts {
		eg.Go(func() error {
			vec, err := g.Embed(egCtx, text)
			if err != nil {
				return fmt.Errorf("batch embedding failed at index %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Dimension returns the dimensionality of the wrapped embedder.
func (g *Guarded) Dimension() int {
	return g.inner.Dimension()
}

// ModelName returns the name of the wrapped embedder's model.
func (g *Guarded) ModelName() string {
	return g.inner.ModelName()
}

// State reports the circuit breaker state, for readiness reporting.
func (g *Guarded) State() gobreaker.State {
	return g.breaker.State()
}

func callerOutcome(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeCanceled
}

// wrap converts err into a ProviderError unless it already is one.
func (g *Guarded) wrap(op string, err error) error {
	var pe *apperr.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &apperr.ProviderError{
		Provider: g.inner.ModelName(),
		Op:       op,
		Timeout:  errors.Is(err, context.DeadlineExceeded),
		Err:      err,
	}
}

var _ Embedder = (*Guarded)(nil)
