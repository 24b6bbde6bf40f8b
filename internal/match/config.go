package match

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/geo"
	"github.com/couchcryptid/wildfire-linker/internal/names"
	"github.com/couchcryptid/wildfire-linker/internal/spatial"
)

// Weights combine the point-mode signals into one confidence.
type Weights struct {
	Distance float64 `yaml:"distance"`
	Name     float64 `yaml:"name"`
	Temporal float64 `yaml:"temporal"`
}

// Config tunes the engine. Start from DefaultConfig.
type Config struct {
	Mode domain.Mode

	IndexKind      spatial.Kind
	CellSize       float64
	NeighborRadius int
	MaxCandidates  int

	Weights         Weights
	TemporalDefault float64
	Threshold       float64

	MaxDistanceMiles float64
	Bounds           geo.Bounds
	EnforceBounds    bool
	AmbiguityMargin  float64

	// Polygon mode.
	Strategies          []domain.Strategy
	PolygonThreshold    float64
	BoundaryShortlist   int
	MinImprovementMiles float64
	MinImprovementRatio float64

	Workers   int
	ChunkSize int

	Names names.Rules
}

// DefaultConfig links incident points to zones within 25 miles of each
// other inside California.
func DefaultConfig() Config {
	return Config{
		Mode:                domain.ModePoint,
		IndexKind:           spatial.KindGrid,
		CellSize:            spatial.DefaultCellSize,
		NeighborRadius:      1,
		MaxCandidates:       200,
		Weights:             Weights{Distance: 0.60, Name: 0.30, Temporal: 0.10},
		TemporalDefault:     0.0,
		Threshold:           0.40,
		MaxDistanceMiles:    25,
		Bounds:              geo.California,
		EnforceBounds:       true,
		AmbiguityMargin:     0.05,
		Strategies:          append([]domain.Strategy(nil), domain.PolygonStrategies...),
		PolygonThreshold:    0,
		BoundaryShortlist:   5,
		MinImprovementMiles: 0.1,
		MinImprovementRatio: 0.1,
		Workers:             4,
		ChunkSize:           5000,
		Names:               names.DefaultRules(),
	}
}

// Validate reports every problem with c, each wrapping domain.ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidConfig}, args...)...))
	}

	if _, ok := domain.ParseMode(string(c.Mode)); !ok {
		bad("unknown mode %q", c.Mode)
	}
	if !(c.CellSize > 0) {
		bad("cell size must be positive, got %v", c.CellSize)
	}
	if c.NeighborRadius < 0 {
		bad("neighbor radius must not be negative, got %d", c.NeighborRadius)
	}
	if c.MaxCandidates <= 0 {
		bad("max candidates must be positive, got %d", c.MaxCandidates)
	}

	w := c.Weights
	sum := w.Distance + w.Name + w.Temporal
	if w.Distance < 0 || w.Name < 0 || w.Temporal < 0 || !(sum > 0) || sum > 1+1e-9 {
		bad("weights must be non-negative and sum to (0, 1], got %+v", w)
	}
	if !unit(c.TemporalDefault) {
		bad("temporal default must be in [0, 1], got %v", c.TemporalDefault)
	}
	if !unit(c.Threshold) || !unit(c.PolygonThreshold) {
		bad("thresholds must be in [0, 1]")
	}
	if !(c.MaxDistanceMiles > 0) {
		bad("max distance must be positive, got %v", c.MaxDistanceMiles)
	}
	if c.EnforceBounds && c.Bounds.Empty() {
		bad("bounds are empty")
	}
	if c.AmbiguityMargin < 0 {
		bad("ambiguity margin must not be negative")
	}

	if c.Mode == domain.ModePolygon && len(c.Strategies) == 0 {
		bad("polygon mode needs at least one strategy")
	}
	for _, s := range c.Strategies {
		if _, ok := domain.ParseStrategy(string(s)); !ok {
			bad("unknown strategy %q", s)
		}
	}
	if c.BoundaryShortlist <= 0 {
		bad("boundary shortlist must be positive, got %d", c.BoundaryShortlist)
	}
	if c.MinImprovementMiles < 0 || c.MinImprovementRatio < 0 || c.MinImprovementRatio >= 1 {
		bad("improvement thresholds out of range")
	}

	if c.Workers <= 0 {
		bad("workers must be positive, got %d", c.Workers)
	}
	if c.ChunkSize <= 0 {
		bad("chunk size must be positive, got %d", c.ChunkSize)
	}
	return errors.Join(errs...)
}

func (c Config) strategyEnabled(s domain.Strategy) bool {
	return slices.Contains(c.Strategies, s)
}

func unit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
