// Package metrics holds the gateway's Prometheus instrumentation.
//
// All metrics live on an injected registry with an explicit New/reset
// lifecycle; nothing registers itself on the global default registry,
// so tests can create throwaway instances.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the trust engine.
type Metrics struct {
	// Score cache
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Scoring
	ScoringDuration *prometheus.HistogramVec
	ProvidersScored prometheus.Counter

	// Reputation batching
	QueueDepth     prometheus.Gauge
	FlushTotal     *prometheus.CounterVec
	FlushedEntries prometheus.Counter

	// Budget resets
	BudgetResets      prometheus.Counter
	BudgetResetErrors prometheus.Counter

	// Fees
	GasEstimateFallbacks prometheus.Counter
}

// New creates and registers all gateway metrics on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_score_cache_hits_total",
				Help: "Score cache hits per category",
			},
			[]string{"category"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_score_cache_misses_total",
				Help: "Score cache misses per category (includes cache-store failures)",
			},
			[]string{"category"},
		),
		ScoringDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_scoring_duration_seconds",
				Help:    "Time to compute a category's composite ranking on a cache miss",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"category"},
		),
		ProvidersScored: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_providers_scored_total",
				Help: "Providers run through the composite scorer",
			},
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_reputation_queue_depth",
				Help: "Pending reputation deltas across all scopes",
			},
		),
		FlushTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_reputation_flush_total",
				Help: "Reputation batch flush attempts by result",
			},
			[]string{"result"}, // ok, error
		),
		FlushedEntries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_reputation_flushed_entries_total",
				Help: "Reputation deltas successfully flushed on-chain",
			},
		),
		BudgetResets: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_budget_resets_total",
				Help: "Budgets reset by the periodic scheduler",
			},
		),
		BudgetResetErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_budget_reset_errors_total",
				Help: "Per-budget reset failures (isolated, batch continues)",
			},
		),
		GasEstimateFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_gas_estimate_fallbacks_total",
				Help: "Live gas estimations that fell back to the constant estimate",
			},
		),
	}
}
