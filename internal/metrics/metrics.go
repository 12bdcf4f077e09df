// Package metrics exposes Prometheus instrumentation for the recommendation engine.
//
// Usage:
//
//	metrics.RecordRecommend("ok", 12*time.Millisecond, 5)
//	metrics.RecordEmbeddingCall("ollama", "error")
//	metrics.SetCatalogRecords(store.Len())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the counters below.
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeInvalid     = "invalid"
	OutcomeNotReady    = "not_ready"
	OutcomeProviderErr = "provider_error"
	OutcomeTimeout     = "timeout"
	OutcomeError       = "error"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeRateLimited = "rate_limited"
	OutcomeCanceled    = "canceled"
)

var (
	// RecommendRequestsTotal counts recommend calls by outcome.
	RecommendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dinerag_recommend_requests_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	// RecommendDuration tracks end-to-end retrieval latency (filter, embed, rank, assemble).
	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dinerag_recommend_duration_seconds",
			Help:    "Duration of recommendation retrieval in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// RecommendResults tracks how many results each request returned.
	RecommendResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dinerag_recommend_results",
			Help:    "Number of ranked results returned per recommendation request",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
	)

	// EmbeddingCallsTotal counts calls to the embedding provider.
	EmbeddingCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dinerag_embedding_calls_total",
			Help: "Total number of embedding provider calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// CatalogRecords is the number of records currently held by the catalog store.
	CatalogRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dinerag_catalog_records",
			Help: "Number of records in the in-memory catalog",
		},
	)

	// GenerationFallbacksTotal counts generations answered by the static fallback table.
	GenerationFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dinerag_generation_fallbacks_total",
			Help: "Total number of recommendations rendered without the generation provider",
		},
	)
)

// RecordRecommend records one recommend call.
func RecordRecommend(outcome string, duration time.Duration, results int) {
	RecommendRequestsTotal.WithLabelValues(outcome).Inc()
	RecommendDuration.Observe(duration.Seconds())
	if outcome == OutcomeOK || outcome == OutcomeEmpty {
		RecommendResults.Observe(float64(results))
	}
}

// RecordEmbeddingCall records one embedding provider call.
func RecordEmbeddingCall(provider, outcome string) {
	EmbeddingCallsTotal.WithLabelValues(provider, outcome).Inc()
}

// SetCatalogRecords updates the catalog size gauge.
func SetCatalogRecords(n int) {
	CatalogRecords.Set(float64(n))
}

// RecordGenerationFallback records a fallback rendering.
func RecordGenerationFallback() {
	GenerationFallbacksTotal.Inc()
}
