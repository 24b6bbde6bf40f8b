// Package match is the matching engine: candidate generation over the spatial
// index, composite scoring, quality validation, and conflict resolution.
//
// An Engine has two phases. LoadTargets is the single-writer build of the
// index and target table; it must finish before any Link call. After that
// the engine is read-only and Link may be called from many goroutines.
package match

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/geo"
	"github.com/couchcryptid/wildfire-linker/internal/names"
	"github.com/couchcryptid/wildfire-linker/internal/observability"
	"github.com/couchcryptid/wildfire-linker/internal/spatial"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
)

var errDuplicateTarget = errors.New("duplicate target id")

const (
	// maxSearchLat caps the latitude used to size the neighbour ring when no
	// bounds are configured.
	maxSearchLat = 80.0
	// maxSearchRadius bounds the cells scanned per lookup at (2r+1)^2.
	maxSearchRadius = 1000
)

// Engine links sources to a fixed, pre-loaded set of targets.
type Engine struct {
	cfg       Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	runID     string
	temporal  TemporalSignal
	canon     *names.Canonicalizer
	index     spatial.Index
	radius    int
	validator Validator
	targets   map[string]*preparedTarget
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock sets the clock used for MatchedAt.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTemporalSignal wires a time-agreement score into point-mode confidence.
func WithTemporalSignal(f TemporalSignal) Option {
	return func(e *Engine) { e.temporal = f }
}

// WithRunID stamps results with a caller-chosen run id.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// preparedTarget caches everything per-target that scoring reads.
type preparedTarget struct {
	entity   domain.TargetEntity
	tokens   names.TokenSet
	rep      geo.LatLng
	centroid geo.LatLng
	bound    orb.Bound
}

func (t *preparedTarget) hasPolygon() bool { return len(t.entity.Polygon) > 0 }

// NewEngine validates cfg and returns an engine with an unbuilt index.
func NewEngine(cfg Config, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	canon, err := names.New(cfg.Names)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	index, err := spatial.New(cfg.IndexKind, cfg.CellSize)
	if err != nil {
		return nil, err
	}
	radius := searchRadius(cfg)
	if radius > maxSearchRadius {
		return nil, fmt.Errorf("%w: cell size %v is too small for max distance %v miles",
			domain.ErrInvalidConfig, cfg.CellSize, cfg.MaxDistanceMiles)
	}

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
		runID:     uuid.NewString(),
		canon:     canon,
		index:     index,
		radius:    radius,
		validator: NewValidator(cfg),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// searchRadius is the neighbour ring, in cells, that reaches MaxDistanceMiles
// from anywhere inside Bounds. Cells are narrowest east-west at the latitude
// farthest from the equator. NeighborRadius is a floor.
func searchRadius(cfg Config) int {
	lat := maxSearchLat
	if !cfg.Bounds.Empty() {
		lat = min(max(math.Abs(cfg.Bounds.MinLat), math.Abs(cfg.Bounds.MaxLat)), maxSearchLat)
	}
	cells := math.Ceil(cfg.MaxDistanceMiles / (cfg.CellSize * geo.MilesPerDegreeLng(lat)))
	if !(cells <= maxSearchRadius) {
		return maxSearchRadius + 1
	}
	return max(cfg.NeighborRadius, int(cells))
}

// RunID identifies the results produced by this engine.
func (e *Engine) RunID() string { return e.runID }

// Canonicalizer exposes the engine's name canonicalizer.
func (e *Engine) Canonicalizer() *names.Canonicalizer { return e.canon }

// LoadTargets replaces the target set and rebuilds the index. Targets with
// duplicate ids or no usable geometry are skipped and reported.
func (e *Engine) LoadTargets(targets []domain.TargetEntity) []domain.Warning {
	prepared := make(map[string]*preparedTarget, len(targets))
	indexed := make([]domain.TargetEntity, 0, len(targets))
	var warnings []domain.Warning

	for _, t := range targets {
		if _, dup := prepared[t.ID]; dup {
			warnings = append(warnings, domain.Warning{EntityID: t.ID, Err: errDuplicateTarget})
			continue
		}
		rep, ok := t.Representative()
		if !ok {
			// The index reports these.
			indexed = append(indexed, t)
			continue
		}
		pt := &preparedTarget{
			entity: t,
			tokens: e.canon.Canonicalize(t.Name),
			rep:    rep,
		}
		if len(t.Polygon) > 0 {
			pt.centroid = geo.Centroid(t.Polygon)
			pt.bound = t.Polygon.Bound()
		} else {
			pt.centroid = rep
			pt.bound = orb.Bound{Min: rep.Point(), Max: rep.Point()}
		}
		prepared[t.ID] = pt
		indexed = append(indexed, t)
	}

	warnings = append(warnings, e.index.Build(indexed)...)
	e.targets = prepared

	for _, w := range warnings {
		e.logger.Warn("target skipped", "target_id", w.EntityID, "error", w.Err)
	}
	e.metrics.GeometryWarnings.Add(float64(len(warnings)))
	e.metrics.TargetsIndexed.Set(float64(e.index.Len()))
	e.logger.Info("targets indexed",
		"indexed", e.index.Len(),
		"skipped", len(warnings),
		"index", e.cfg.IndexKind,
		"cell_size", e.cfg.CellSize,
		"search_radius", e.radius,
	)
	return warnings
}

// Link matches one source under the configured mode. Polygon modes fall back
// to point matching for sources without a perimeter.
func (e *Engine) Link(src domain.SourceEntity) (domain.Linked, error) {
	mode := e.cfg.Mode
	if mode != domain.ModePoint && !src.HasPolygon() {
		e.logger.Debug("source has no perimeter, matching by point", "source_id", src.ID, "mode", mode)
		mode = domain.ModePoint
	}

	var (
		linked domain.Linked
		err    error
	)
	switch mode {
	case domain.ModePolygon:
		linked, err = e.linkPolygon(src)
	case domain.ModePerimeterPoint:
		linked, err = e.linkPoint(src, domain.StrategyPointInPerimeter)
	default:
		linked, err = e.linkPoint(src, domain.StrategyPoint)
	}
	if err != nil {
		return domain.Linked{}, fmt.Errorf("link source %q: %w", src.ID, err)
	}
	linked.Mode = mode

	for _, r := range linked.Rejections {
		for _, f := range r.Flags {
			e.metrics.Rejections.WithLabelValues(string(f)).Inc()
		}
	}
	if linked.Best() != nil {
		e.metrics.Matches.WithLabelValues(string(mode)).Inc()
	}
	return linked, nil
}

func (e *Engine) temporalScore(src domain.SourceEntity, tgt domain.TargetEntity) float64 {
	if e.temporal != nil {
		if v, ok := e.temporal(src, tgt); ok {
			return clamp01(v)
		}
	}
	return e.cfg.TemporalDefault
}

func (e *Engine) newResult(src domain.SourceEntity, srcTokens names.TokenSet, t *preparedTarget, method domain.Strategy, confidence, miles float64, geoValid bool) domain.MatchResult {
	nameScore := names.Jaccard(srcTokens, t.tokens)
	flags := []domain.QualityFlag{}
	if nameScore == 0 {
		flags = append(flags, domain.FlagNoNameOverlap)
	}
	return domain.MatchResult{
		SourceID:        src.ID,
		TargetID:        t.entity.ID,
		TargetName:      t.entity.Name,
		Attribution:     t.entity.Attribution,
		Dataset:         t.entity.Dataset,
		Confidence:      confidence,
		DistanceMiles:   miles,
		NameScore:       nameScore,
		NameEditRatio:   names.EditRatio(srcTokens, t.tokens),
		GeographicValid: geoValid,
		QualityFlags:    flags,
		Method:          method,
		MatchedAt:       e.clock.Now().UTC(),
		RunID:           e.runID,
	}
}

// Status summarizes the loaded engine for operators.
type Status struct {
	RunID    string       `json:"run_id"`
	Mode     domain.Mode  `json:"mode"`
	Index    spatial.Kind `json:"index"`
	CellSize float64      `json:"cell_size"`
	Radius   int          `json:"search_radius"`
	Targets  int          `json:"targets"`
}

// Status reports the run id, mode and index size.
func (e *Engine) Status() Status {
	return Status{
		RunID:    e.runID,
		Mode:     e.cfg.Mode,
		Index:    e.cfg.IndexKind,
		CellSize: e.cfg.CellSize,
		Radius:   e.radius,
		Targets:  e.index.Len(),
	}
}
