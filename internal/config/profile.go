package config

import (
	"fmt"
	"os"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/geo"
	"github.com/couchcryptid/wildfire-linker/internal/match"
	"github.com/couchcryptid/wildfire-linker/internal/names"
	"github.com/goccy/go-yaml"
)

// Profile is a YAML tuning file. Unset fields keep their defaults; a names
// block replaces the default canonicalizer rules wholesale.
//
//	mode: polygon
//	weights: {distance: 0.5, name: 0.4, temporal: 0.1}
//	threshold: 0.35
//	max_distance_miles: 15
//	bounds: {min_lat: 32.5, max_lat: 42, min_lng: -124.5, max_lng: -114}
//	strategies: [centroid, boundary]
type Profile struct {
	Mode             string         `yaml:"mode"`
	Weights          *match.Weights `yaml:"weights"`
	Threshold        *float64       `yaml:"threshold"`
	PolygonThreshold *float64       `yaml:"polygon_threshold"`
	TemporalDefault  *float64       `yaml:"temporal_default"`
	MaxDistanceMiles *float64       `yaml:"max_distance_miles"`
	AmbiguityMargin  *float64       `yaml:"ambiguity_margin"`
	Bounds           *geo.Bounds    `yaml:"bounds"`
	EnforceBounds    *bool          `yaml:"enforce_bounds"`
	Strategies       []string       `yaml:"strategies"`
	Names            *names.Rules   `yaml:"names"`
}

// LoadProfile reads and strictly decodes a profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes a profile, rejecting unknown keys.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.UnmarshalWithOptions(data, &p, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("%w: profile: %w", domain.ErrInvalidConfig, err)
	}
	return &p, nil
}

// Apply overlays the profile onto cfg.
func (p *Profile) Apply(cfg *match.Config) error {
	if p.Mode != "" {
		mode, ok := domain.ParseMode(p.Mode)
		if !ok {
			return fmt.Errorf("%w: profile mode %q", domain.ErrInvalidConfig, p.Mode)
		}
		cfg.Mode = mode
	}
	if p.Weights != nil {
		cfg.Weights = *p.Weights
	}
	setFloat(&cfg.Threshold, p.Threshold)
	setFloat(&cfg.PolygonThreshold, p.PolygonThreshold)
	setFloat(&cfg.TemporalDefault, p.TemporalDefault)
	setFloat(&cfg.MaxDistanceMiles, p.MaxDistanceMiles)
	setFloat(&cfg.AmbiguityMargin, p.AmbiguityMargin)
	if p.Bounds != nil {
		cfg.Bounds = *p.Bounds
	}
	if p.EnforceBounds != nil {
		cfg.EnforceBounds = *p.EnforceBounds
	}
	if len(p.Strategies) > 0 {
		cfg.Strategies = cfg.Strategies[:0:0]
		for _, s := range p.Strategies {
			st, ok := domain.ParseStrategy(s)
			if !ok {
				return fmt.Errorf("%w: profile strategy %q", domain.ErrInvalidConfig, s)
			}
			cfg.Strategies = append(cfg.Strategies, st)
		}
	}
	if p.Names != nil {
		cfg.Names = *p.Names
	}
	return nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
