package trust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func establishedProvider(now time.Time) ProviderMetrics {
	seen := now.Add(-time.Hour)
	return ProviderMetrics{
		TrustScore:    4.0,
		SuccessRate:   0.95,
		AvgLatencyMs:  250,
		UptimePercent: 99.5,
		TotalRequests: 20000,
		LastSeen:      &seen,
		CreatedAt:     now.Add(-2 * 365 * 24 * time.Hour),
	}
}

func TestComputeScoreBounds(t *testing.T) {
	now := time.Now()
	b := ComputeScoreAt(establishedProvider(now), DefaultWeights(), 4.5, now)

	assert.GreaterOrEqual(t, b.Total, 0.0)
	assert.LessOrEqual(t, b.Total, 5.0)
	assert.Empty(t, b.Penalties)
	require.Len(t, b.Signals, 7)
}

func TestComputeScoreSignalNormalization(t *testing.T) {
	now := time.Now()
	p := establishedProvider(now)
	b := ComputeScoreAt(p, DefaultWeights(), 5, now)

	assert.InDelta(t, 0.95, b.Signals["successRate"].Raw, 1e-9)
	assert.InDelta(t, 1-250.0/5000, b.Signals["latency"].Raw, 1e-9)
	assert.InDelta(t, 0.995, b.Signals["uptime"].Raw, 1e-9)
	assert.InDelta(t, 1.0, b.Signals["feedback"].Raw, 1e-9)  // 5 → (5-1)/4
	assert.InDelta(t, 0.8, b.Signals["onChainRep"].Raw, 1e-9) // 4/5
	assert.InDelta(t, 1.0, b.Signals["longevity"].Raw, 1e-9)  // > 1 year
	assert.InDelta(t, 1.0, b.Signals["volumeConsistency"].Raw, 1e-9)

	for name, s := range b.Signals {
		assert.InDelta(t, s.Weight*s.Raw, s.Weighted, 1e-12, name)
	}
}

func TestComputeScoreNoFeedbackIsNeutral(t *testing.T) {
	now := time.Now()
	b := ComputeScoreAt(establishedProvider(now), DefaultWeights(), 0, now)
	assert.InDelta(t, 0.5, b.Signals["feedback"].Raw, 1e-9)
}

func TestComputeScoreNewProviderPenalty(t *testing.T) {
	now := time.Now()
	p := establishedProvider(now)
	p.TotalRequests = 5

	b := ComputeScoreAt(p, DefaultWeights(), 4, now)
	require.Len(t, b.Penalties, 1)
	assert.Contains(t, b.Penalties[0], "new_provider")
}

func TestComputeScoreInactivePenalty(t *testing.T) {
	now := time.Now()
	p := establishedProvider(now)
	seen := now.Add(-10 * 24 * time.Hour)
	p.LastSeen = &seen

	b := ComputeScoreAt(p, DefaultWeights(), 4, now)
	require.Len(t, b.Penalties, 1)
	assert.Contains(t, b.Penalties[0], "inactive")

	// Penalty shrinks the score vs the active version.
	active := ComputeScoreAt(establishedProvider(now), DefaultWeights(), 4, now)
	assert.Less(t, b.Total, active.Total)
}

func TestComputeScoreOutOfRangeSignalsClamped(t *testing.T) {
	now := time.Now()
	p := establishedProvider(now)
	p.SuccessRate = 1.7
	p.UptimePercent = 140
	p.AvgLatencyMs = 60000

	b := ComputeScoreAt(p, DefaultWeights(), 4, now)
	assert.Equal(t, 1.0, b.Signals["successRate"].Raw)
	assert.Equal(t, 1.0, b.Signals["uptime"].Raw)
	assert.Equal(t, 0.0, b.Signals["latency"].Raw)
}

func TestComputeScoreZeroWeights(t *testing.T) {
	now := time.Now()
	b := ComputeScoreAt(establishedProvider(now), WeightConfig{}, 4, now)
	assert.Equal(t, 0.0, b.Total)
}
