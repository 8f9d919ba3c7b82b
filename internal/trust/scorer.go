package trust

import (
	"fmt"
	"math"
	"time"
)

// ProviderMetrics are the raw signals a provider is scored on.
type ProviderMetrics struct {
	TrustScore    float64 // current on-chain backed score, 0–5
	SuccessRate   float64 // 0–1
	AvgLatencyMs  float64
	UptimePercent float64 // 0–100
	TotalRequests int64
	LastSeen      *time.Time
	CreatedAt     time.Time
}

// Signal is one weighted component of a trust score.
type Signal struct {
	Weight   float64 `json:"weight"`
	Raw      float64 `json:"raw"`
	Weighted float64 `json:"weighted"`
}

// Breakdown is the full explanation of a computed trust score.
type Breakdown struct {
	Total     float64           `json:"total"`
	Signals   map[string]Signal `json:"signals"`
	Penalties []string          `json:"penalties"`
}

// Normalization bounds for the latency, longevity and volume signals.
const (
	latencyWorstMs   = 5000  // 0ms = 1.0, 5000ms+ = 0.0
	longevityMaxDays = 365   // one year of operation = max longevity
	volumeMaxReqs    = 10000 // request count for max volume consistency

	newProviderMinRequests = 10
	newProviderPenalty     = 0.8
	inactiveDays           = 7
	inactivePenalty        = 0.7
)

// ComputeScore computes a 0–5 trust score from weighted, normalized
// signals:
//
//	score = sum(weight_i * normalized_i) / sum(weight_i) * 5
//
// feedbackAvg is the decayed feedback average on the 1–5 rating scale;
// pass 0 for a provider with no feedback (scored as neutral).
func ComputeScore(p ProviderMetrics, weights WeightConfig, feedbackAvg float64) Breakdown {
	return ComputeScoreAt(p, weights, feedbackAvg, time.Now())
}

// ComputeScoreAt is ComputeScore with an explicit reference instant.
func ComputeScoreAt(p ProviderMetrics, weights WeightConfig, feedbackAvg float64, now time.Time) Breakdown {
	signals := make(map[string]Signal, 7)
	penalties := []string{}

	sr := clamp01(p.SuccessRate)
	signals["successRate"] = signal(weights.SuccessRate, sr)

	// Latency normalized so lower is better.
	latencyNorm := math.Max(0, 1-p.AvgLatencyMs/latencyWorstMs)
	signals["latency"] = signal(weights.Latency, latencyNorm)

	uptime := clamp01(p.UptimePercent / 100)
	signals["uptime"] = signal(weights.Uptime, uptime)

	// Feedback maps the 1–5 rating scale onto 0–1; no feedback is neutral.
	fb := 0.5
	if feedbackAvg > 0 {
		fb = (feedbackAvg - 1) / 4
	}
	signals["feedback"] = signal(weights.Feedback, fb)

	onChain := clamp01(p.TrustScore / 5)
	signals["onChainRep"] = signal(weights.OnChainRep, onChain)

	ageDays := now.Sub(p.CreatedAt).Hours() / 24
	longevity := math.Min(1, ageDays/longevityMaxDays)
	signals["longevity"] = signal(weights.Longevity, longevity)

	volNorm := math.Min(1, float64(p.TotalRequests)/volumeMaxReqs)
	signals["volumeConsistency"] = signal(weights.VolumeConsistency, volNorm)

	var totalWeight, totalWeighted float64
	for _, s := range signals {
		totalWeight += s.Weight
		totalWeighted += s.Weighted
	}

	var score float64
	if totalWeight > 0 {
		score = totalWeighted / totalWeight * 5
	}

	if p.TotalRequests < newProviderMinRequests {
		score *= newProviderPenalty
		penalties = append(penalties, fmt.Sprintf("new_provider (%.1fx): fewer than %d transactions", newProviderPenalty, newProviderMinRequests))
	}

	if p.LastSeen != nil {
		daysSinceActive := now.Sub(*p.LastSeen).Hours() / 24
		if daysSinceActive > inactiveDays {
			score *= inactivePenalty
			penalties = append(penalties, fmt.Sprintf("inactive (%.1fx): last seen %dd ago", inactivePenalty, int(math.Round(daysSinceActive))))
		}
	}

	return Breakdown{
		Total:     math.Round(score*100) / 100,
		Signals:   signals,
		Penalties: penalties,
	}
}

func signal(weight, raw float64) Signal {
	return Signal{Weight: weight, Raw: raw, Weighted: raw * weight}
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
