package match

import (
	"math"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
)

// DistanceScore maps a distance onto [0, 1]: 1.0 through 5 miles, 0.8 falling
// to 0.2 across 5–15 miles, 0.2 falling to 0 across 15–25 miles, 0 beyond.
func DistanceScore(miles float64) float64 {
	switch {
	case math.IsNaN(miles):
		return 0
	case miles <= 5:
		return 1.0
	case miles <= 15:
		return 0.8 - 0.6*(miles-5)/10
	case miles <= 25:
		return 0.2 - 0.2*(miles-15)/10
	default:
		return 0
	}
}

// Confidence is the weighted sum of the three signals, clamped to [0, 1].
func (w Weights) Confidence(distanceScore, nameScore, temporalScore float64) float64 {
	return clamp01(w.Distance*distanceScore + w.Name*nameScore + w.Temporal*temporalScore)
}

// StrategyConfidence is the polygon-mode confidence for a strategy distance:
// 1 at contact, halving by one mile.
func StrategyConfidence(miles float64) float64 {
	if math.IsNaN(miles) || miles < 0 {
		return 0
	}
	return 1 / (1 + miles)
}

// TemporalSignal scores how well a source and target agree in time. It
// returns false when it has no opinion, and the configured default applies.
type TemporalSignal func(src domain.SourceEntity, tgt domain.TargetEntity) (float64, bool)

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
