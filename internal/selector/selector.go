// Package selector ranks a category's providers by composite trust
// score, cache-aside over the score cache.
package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/fabric/gateway/internal/cache"
	"github.com/fabric/gateway/internal/database"
	"github.com/fabric/gateway/internal/metrics"
	"github.com/fabric/gateway/internal/trust"
)

// Store is the slice of the persistent store the selector reads.
// *database.Store satisfies it; tests inject fakes.
type Store interface {
	ActiveProvidersByCategory(ctx context.Context, category string, maxPrice float64, limit int) ([]database.Provider, error)
	FeedbackByProviders(ctx context.Context, providerIDs []string, limit int) ([]database.Feedback, error)
}

// Options filter a ranking request. Zero values disable a filter.
type Options struct {
	Limit         int
	MinTrustScore float64
	MaxPrice      float64
	Weights       *trust.Overrides
}

const (
	defaultLimit    = 10
	candidateFetch  = 50  // fetch more than needed, we re-rank
	feedbackFetch   = 500 // cap the feedback batch load
)

// Selector computes and caches composite provider rankings.
type Selector struct {
	store   Store
	cache   *cache.ScoreCache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a selector. cache may be nil to disable caching entirely
// (every call recomputes).
func New(store Store, sc *cache.ScoreCache, m *metrics.Metrics, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{store: store, cache: sc, metrics: m, logger: logger}
}

// Rank returns the ordered providers for a category.
//
// The cached entry is category-wide, so request filters are applied
// after the cache read on both the hit and miss paths. Store errors are
// hard failures, no partial rankings. Cache errors read as misses.
func (s *Selector) Rank(ctx context.Context, category string, opts Options) ([]cache.ScoredProvider, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, category); ok {
			s.metrics.CacheHits.WithLabelValues(category).Inc()
			return applyFilters(cached, opts), nil
		}
		s.metrics.CacheMisses.WithLabelValues(category).Inc()
	}

	scored, err := s.compute(ctx, category, opts)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(scored) > 0 {
		// Cache the full category list, not the filtered view.
		s.cache.Put(ctx, category, scored)
	}

	return applyFilters(scored, opts), nil
}

// compute loads raw signals from the store and scores every active
// provider in the category.
func (s *Selector) compute(ctx context.Context, category string, opts Options) ([]cache.ScoredProvider, error) {
	start := time.Now()

	providers, err := s.store.ActiveProvidersByCategory(ctx, category, 0, candidateFetch)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	if len(providers) == 0 {
		return nil, nil
	}

	ids := make([]string, len(providers))
	for i, p := range providers {
		ids[i] = p.ID
	}

	feedbackAvgs, err := s.loadFeedbackAverages(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load feedback: %w", err)
	}

	weights := trust.DefaultWeights()
	if opts.Weights != nil {
		weights = trust.Normalize(*opts.Weights)
	}

	scored := make([]cache.ScoredProvider, 0, len(providers))
	for _, p := range providers {
		breakdown := trust.ComputeScore(trust.ProviderMetrics{
			TrustScore:    p.TrustScore,
			SuccessRate:   p.SuccessRate,
			AvgLatencyMs:  p.AvgLatencyMs,
			UptimePercent: p.UptimePercent,
			TotalRequests: p.TotalRequests,
			LastSeen:      p.LastSeen,
			CreatedAt:     p.CreatedAt,
		}, weights, feedbackAvgs[p.ID])

		breakdownJSON, _ := json.Marshal(breakdown)

		scored = append(scored, cache.ScoredProvider{
			ID:             p.ID,
			RegistryID:     p.RegistryID,
			Name:           p.Name,
			Category:       p.Category,
			Endpoint:       p.Endpoint,
			PricingModel:   p.PricingModel,
			BasePrice:      p.BasePrice,
			Currency:       p.Currency,
			WalletAddress:  p.WalletAddress,
			TrustScore:     breakdown.Total,
			CompositeScore: breakdown.Total,
			TrustBreakdown: breakdownJSON,
			SuccessRate:    p.SuccessRate,
			AvgLatencyMs:   p.AvgLatencyMs,
			UptimePercent:  p.UptimePercent,
			TotalRequests:  p.TotalRequests,
		})
	}

	sortProviders(scored)

	s.metrics.ProvidersScored.Add(float64(len(scored)))
	s.metrics.ScoringDuration.WithLabelValues(category).Observe(time.Since(start).Seconds())
	s.logger.Debug("recomputed category ranking",
		"category", category, "providers", len(scored), "took", time.Since(start))

	return scored, nil
}

// loadFeedbackAverages batch-loads feedback for all candidates in one
// query and computes per-provider decayed averages.
func (s *Selector) loadFeedbackAverages(ctx context.Context, providerIDs []string) (map[string]float64, error) {
	feedback, err := s.store.FeedbackByProviders(ctx, providerIDs, feedbackFetch)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]trust.FeedbackRecord)
	for _, f := range feedback {
		grouped[f.ProviderID] = append(grouped[f.ProviderID], trust.FeedbackRecord{
			Score:     f.Score,
			CreatedAt: f.CreatedAt,
		})
	}

	avgs := make(map[string]float64, len(grouped))
	for pid, records := range grouped {
		avgs[pid] = trust.DecayedAverage(records)
	}
	return avgs, nil
}

// sortProviders orders by composite score descending with deterministic
// tie-breaks: totalRequests descending, then provider id ascending.
func sortProviders(providers []cache.ScoredProvider) {
	sort.Slice(providers, func(i, j int) bool {
		a, b := providers[i], providers[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		if a.TotalRequests != b.TotalRequests {
			return a.TotalRequests > b.TotalRequests
		}
		return a.ID < b.ID
	})
}

func applyFilters(providers []cache.ScoredProvider, opts Options) []cache.ScoredProvider {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	filtered := make([]cache.ScoredProvider, 0, len(providers))
	for _, p := range providers {
		if opts.MinTrustScore > 0 && p.TrustScore < opts.MinTrustScore {
			continue
		}
		if opts.MaxPrice > 0 && p.BasePrice > opts.MaxPrice {
			continue
		}
		filtered = append(filtered, p)
		if len(filtered) == limit {
			break
		}
	}
	return filtered
}
