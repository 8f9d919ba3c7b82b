// Package trust computes provider trust scores from weighted raw signals
// with time-decayed feedback.
package trust

// WeightConfig defines the relative importance of each scoring signal.
// Values must be >= 0; the defaults sum to 1.0 but custom sets are not
// renormalized; callers own the sanity of their overrides.
type WeightConfig struct {
	SuccessRate       float64 `json:"successRate" yaml:"success_rate"`
	Latency           float64 `json:"latency" yaml:"latency"`
	Uptime            float64 `json:"uptime" yaml:"uptime"`
	Feedback          float64 `json:"feedback" yaml:"feedback"`
	OnChainRep        float64 `json:"onChainRep" yaml:"on_chain_rep"`
	Longevity         float64 `json:"longevity" yaml:"longevity"`
	VolumeConsistency float64 `json:"volumeConsistency" yaml:"volume_consistency"`
}

// DefaultWeights returns the standard weight distribution.
func DefaultWeights() WeightConfig {
	return WeightConfig{
		SuccessRate:       0.30,
		Latency:           0.15,
		Uptime:            0.15,
		Feedback:          0.20,
		OnChainRep:        0.10,
		Longevity:         0.05,
		VolumeConsistency: 0.05,
	}
}

// Sum returns the total of all weights.
func (w WeightConfig) Sum() float64 {
	return w.SuccessRate + w.Latency + w.Uptime + w.Feedback +
		w.OnChainRep + w.Longevity + w.VolumeConsistency
}

// Overrides holds optional per-signal weight overrides from a request.
// Nil fields keep the default.
type Overrides struct {
	SuccessRate       *float64 `json:"successRate,omitempty"`
	Latency           *float64 `json:"latency,omitempty"`
	Uptime            *float64 `json:"uptime,omitempty"`
	Feedback          *float64 `json:"feedback,omitempty"`
	OnChainRep        *float64 `json:"onChainRep,omitempty"`
	Longevity         *float64 `json:"longevity,omitempty"`
	VolumeConsistency *float64 `json:"volumeConsistency,omitempty"`
}

// Normalize merges overrides onto the defaults key by key and clamps
// negative values to 0. It never renormalizes the sum.
func Normalize(custom Overrides) WeightConfig {
	w := DefaultWeights()

	apply(&w.SuccessRate, custom.SuccessRate)
	apply(&w.Latency, custom.Latency)
	apply(&w.Uptime, custom.Uptime)
	apply(&w.Feedback, custom.Feedback)
	apply(&w.OnChainRep, custom.OnChainRep)
	apply(&w.Longevity, custom.Longevity)
	apply(&w.VolumeConsistency, custom.VolumeConsistency)

	return w
}

func apply(dst *float64, override *float64) {
	if override == nil {
		return
	}
	if *override < 0 {
		*dst = 0
		return
	}
	*dst = *override
}
