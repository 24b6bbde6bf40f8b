package match

import (
	"math"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/geo"
)

// Validator applies the geographic, distance, and confidence checks.
type Validator struct {
	Bounds           geo.Bounds
	EnforceBounds    bool
	MaxDistanceMiles float64
}

// NewValidator extracts the validator settings from cfg.
func NewValidator(cfg Config) Validator {
	return Validator{
		Bounds:           cfg.Bounds,
		EnforceBounds:    cfg.EnforceBounds,
		MaxDistanceMiles: cfg.MaxDistanceMiles,
	}
}

// CheckBounds runs on raw representative coordinates before any distance
// math. valid reports the geographic check itself; out_of_bounds is only
// flagged when bounds are enforced.
func (v Validator) CheckBounds(points ...geo.LatLng) (valid bool, flags []domain.QualityFlag) {
	valid = true
	for _, p := range points {
		if !v.Bounds.Contains(p) {
			valid = false
			break
		}
	}
	if !valid && v.EnforceBounds {
		flags = append(flags, domain.FlagOutOfBounds)
	}
	return valid, flags
}

// CheckDistance flags unusable and over-cap distances.
func (v Validator) CheckDistance(miles float64) []domain.QualityFlag {
	if math.IsNaN(miles) || math.IsInf(miles, 0) || miles < 0 {
		return []domain.QualityFlag{domain.FlagGeometryInvalid}
	}
	if miles > v.MaxDistanceMiles {
		return []domain.QualityFlag{domain.FlagDistanceExceeded}
	}
	return nil
}

// CheckConfidence flags a confidence below threshold.
func (v Validator) CheckConfidence(confidence, threshold float64) []domain.QualityFlag {
	if confidence < threshold {
		return []domain.QualityFlag{domain.FlagLowConfidence}
	}
	return nil
}
