package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func fptr(v float64) *float64 { return &v }

func TestDefaultWeightsSumToOne(t *testing.T) {
	assert.InDelta(t, 1.0, DefaultWeights().Sum(), 1e-10)
}

func TestNormalizeEmptyOverrides(t *testing.T) {
	assert.Equal(t, DefaultWeights(), Normalize(Overrides{}))
}

func TestNormalizeMergesOverDefaults(t *testing.T) {
	w := Normalize(Overrides{Feedback: fptr(0.4), Latency: fptr(0.05)})

	assert.Equal(t, 0.4, w.Feedback)
	assert.Equal(t, 0.05, w.Latency)

	// untouched keys keep their defaults
	assert.Equal(t, 0.30, w.SuccessRate)
	assert.Equal(t, 0.10, w.OnChainRep)
}

func TestNormalizeClampsNegatives(t *testing.T) {
	w := Normalize(Overrides{Uptime: fptr(-5)})

	assert.Equal(t, 0.0, w.Uptime)
	assert.Equal(t, 0.15, w.Latency) // neighbors untouched
	assert.Equal(t, 0.20, w.Feedback)
}

func TestNormalizeDoesNotRenormalizeSum(t *testing.T) {
	w := Normalize(Overrides{SuccessRate: fptr(3)})
	assert.Greater(t, w.Sum(), 1.0)
}
