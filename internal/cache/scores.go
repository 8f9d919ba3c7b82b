// Package cache provides the cache-aside layer over computed provider
// trust scores.
//
// Caching here is strictly an optimization: every failure of the backing
// store (unreachable, decode error, partial write) degrades to a miss
// or a no-op, never to an error the caller sees. Consistency is handled
// by explicit invalidation from the components that mutate scoring
// signals; a failed invalidation is repaired by TTL expiry.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// RedisClient is the minimal interface the score cache needs from a
// Redis library. cmd/api creates the concrete go-redis adapter and
// injects it; tests inject fakes.
type RedisClient interface {
	// Get returns (nil, nil) when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// ScoredProvider is one provider's ranking entry: identity fields, raw
// signals, and the derived trust/composite scores. It is always a
// derived value, recomputable from source signals, never ground truth.
type ScoredProvider struct {
	ID             string          `json:"id"`
	RegistryID     string          `json:"registryId"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Endpoint       string          `json:"endpoint"`
	PricingModel   string          `json:"pricingModel"`
	BasePrice      float64         `json:"basePrice"`
	Currency       string          `json:"currency"`
	WalletAddress  string          `json:"walletAddress,omitempty"`
	TrustScore     float64         `json:"trustScore"`
	CompositeScore float64         `json:"compositeScore"`
	TrustBreakdown json.RawMessage `json:"trustBreakdown,omitempty"`
	SuccessRate    float64         `json:"successRate"`
	AvgLatencyMs   float64         `json:"avgLatencyMs"`
	UptimePercent  float64         `json:"uptimePercent"`
	TotalRequests  int64           `json:"totalRequests"`
}

// ScoreCache stores the category-wide ordered provider list under
// "<prefix><category>" with a TTL.
type ScoreCache struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewScoreCache creates a score cache. prefix defaults to
// "trust:score:" and ttl to 300 seconds.
func NewScoreCache(client RedisClient, prefix string, ttl time.Duration, logger *slog.Logger) *ScoreCache {
	if prefix == "" {
		prefix = "trust:score:"
	}
	if ttl == 0 {
		ttl = 300 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScoreCache{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// TTL returns the configured entry lifetime.
func (sc *ScoreCache) TTL() time.Duration { return sc.ttl }

// Get returns the cached scored list for a category. The second return
// is false on absence, decode error, or store error; callers only see
// hit or miss.
func (sc *ScoreCache) Get(ctx context.Context, category string) ([]ScoredProvider, bool) {
	data, err := sc.client.Get(ctx, sc.prefix+category)
	if err != nil {
		sc.logger.Debug("score cache read failed", "category", category, "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	var providers []ScoredProvider
	if err := json.Unmarshal(data, &providers); err != nil {
		sc.logger.Warn("score cache entry corrupt, treating as miss", "category", category, "error", err)
		return nil, false
	}
	return providers, true
}

// Put stores the scored list for a category with the configured TTL.
// Best effort: failures are swallowed.
func (sc *ScoreCache) Put(ctx context.Context, category string, providers []ScoredProvider) {
	data, err := json.Marshal(providers)
	if err != nil {
		sc.logger.Warn("score cache marshal failed", "category", category, "error", err)
		return
	}
	if err := sc.client.Set(ctx, sc.prefix+category, data, sc.ttl); err != nil {
		sc.logger.Debug("score cache write failed", "category", category, "error", err)
	}
}

// Invalidate drops a category's entry. Must be called by any component
// that mutates a signal feeding that category's scores (new feedback,
// latency/uptime update) before the mutation is considered visible.
// Best effort: on failure the stale entry survives at most one TTL.
func (sc *ScoreCache) Invalidate(ctx context.Context, category string) {
	if err := sc.client.Del(ctx, sc.prefix+category); err != nil {
		sc.logger.Debug("score cache invalidate failed", "category", category, "error", err)
	}
}

// InvalidateAll drops every category entry, used after bulk signal
// updates. Best effort.
func (sc *ScoreCache) InvalidateAll(ctx context.Context) {
	keys, err := sc.client.Keys(ctx, sc.prefix+"*")
	if err != nil {
		sc.logger.Debug("score cache key scan failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := sc.client.Del(ctx, keys...); err != nil {
		sc.logger.Debug("score cache bulk invalidate failed", "error", err)
	}
}
