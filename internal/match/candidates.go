package match

import (
	"cmp"
	"slices"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/geo"
	"github.com/couchcryptid/wildfire-linker/internal/names"
)

// queryPoint is the source location in point mode and the perimeter
// centroid otherwise.
func (e *Engine) queryPoint(src domain.SourceEntity, mode domain.Mode) geo.LatLng {
	if mode != domain.ModePoint && src.HasPolygon() {
		return geo.Centroid(src.Polygon)
	}
	return src.Location
}

// lookup pulls index-pruned targets near p, keeping the MaxCandidates nearest
// when the neighbourhood is crowded.
func (e *Engine) lookup(p geo.LatLng) ([]*preparedTarget, error) {
	ids, err := e.index.Query(p, e.radius)
	if err != nil {
		return nil, err
	}

	out := make([]*preparedTarget, 0, len(ids))
	for _, id := range ids {
		if t, ok := e.targets[id]; ok {
			out = append(out, t)
		}
	}

	if len(out) > e.cfg.MaxCandidates {
		type ranked struct {
			t *preparedTarget
			d float64
		}
		rs := make([]ranked, len(out))
		for i, t := range out {
			rs[i] = ranked{t, geo.DistanceMiles(p, t.rep)}
		}
		slices.SortStableFunc(rs, func(a, b ranked) int { return cmp.Compare(a.d, b.d) })
		out = out[:e.cfg.MaxCandidates]
		for i := range out {
			out[i] = rs[i].t
		}
	}

	e.metrics.CandidatesPerSource.Observe(float64(len(out)))
	return out, nil
}

// Candidates returns the scored candidates for src under the engine's mode,
// before validation. Polygon mode reports centroid distances.
func (e *Engine) Candidates(src domain.SourceEntity) ([]domain.MatchCandidate, error) {
	mode := e.cfg.Mode
	if !src.HasPolygon() {
		mode = domain.ModePoint
	}

	ts, err := e.lookup(e.queryPoint(src, mode))
	if err != nil {
		return nil, err
	}

	srcTokens := e.canon.Canonicalize(src.Name)
	out := make([]domain.MatchCandidate, 0, len(ts))
	for _, t := range ts {
		c := domain.MatchCandidate{
			SourceID:      src.ID,
			TargetID:      t.entity.ID,
			NameScore:     names.Jaccard(srcTokens, t.tokens),
			NameEditRatio: names.EditRatio(srcTokens, t.tokens),
		}
		switch mode {
		case domain.ModePolygon:
			c.Method = domain.StrategyCentroid
			c.DistanceMiles = geo.DistanceMiles(geo.Centroid(src.Polygon), t.centroid)
		case domain.ModePerimeterPoint:
			c.Method = domain.StrategyPointInPerimeter
			c.DistanceMiles = geo.PointBoundaryMiles(t.rep, src.Polygon)
		default:
			c.Method = domain.StrategyPoint
			c.DistanceMiles = geo.DistanceMiles(src.Location, t.rep)
		}
		out = append(out, c)
	}
	return out, nil
}
