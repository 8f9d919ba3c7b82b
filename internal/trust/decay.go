package trust

import "time"

// Feedback decay steps. Recent ratings dominate trust without fully
// discarding history.
const (
	decayFullDays = 90  // full weight up to 90 days
	decayHalfDays = 180 // half weight up to 180 days

	decayHalfMultiplier = 0.5
	decayOldMultiplier  = 0.2
)

// FeedbackRecord is one rating event as read from the store. Records are
// immutable once created.
type FeedbackRecord struct {
	Score     float64
	CreatedAt time.Time
}

// DecayMultiplier returns the weight applied to feedback of the given age.
// Boundary ages (exactly 90 or 180 days) take the younger branch.
func DecayMultiplier(ageDays float64) float64 {
	switch {
	case ageDays <= decayFullDays:
		return 1.0
	case ageDays <= decayHalfDays:
		return decayHalfMultiplier
	default:
		return decayOldMultiplier
	}
}

// DecayedAverage computes the time-decayed weighted mean of feedback
// scores. Ages are measured from the instant of the call, so the same
// record set yields a slowly decreasing average over real time.
//
// An empty input returns 0: a provider with no feedback contributes a
// neutral feedback signal rather than failing scoring.
func DecayedAverage(records []FeedbackRecord) float64 {
	return DecayedAverageAt(records, time.Now())
}

// DecayedAverageAt is DecayedAverage with an explicit reference instant.
func DecayedAverageAt(records []FeedbackRecord, now time.Time) float64 {
	if len(records) == 0 {
		return 0
	}

	var totalScore, totalWeight float64
	for _, r := range records {
		ageDays := now.Sub(r.CreatedAt).Hours() / 24
		w := DecayMultiplier(ageDays)
		totalScore += r.Score * w
		totalWeight += w
	}

	if totalWeight <= 0 {
		return 0
	}
	return totalScore / totalWeight
}
