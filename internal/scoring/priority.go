package scoring

import (
	"math"

	"github.com/david/proposaland/internal/config"
	"github.com/david/proposaland/internal/models"
)

// thresholdEpsilon absorbs float summation error so a score that is
// mathematically on a threshold lands in the higher tier.
const thresholdEpsilon = 1e-9

// Classify maps a relevance score to a priority tier.
func Classify(score float64, t config.ThresholdsConfig) models.Priority {
	s := clamp01(score) + thresholdEpsilon
	switch {
	case s >= t.Critical:
		return models.PriorityCritical
	case s >= t.High:
		return models.PriorityHigh
	case s >= t.Medium:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
