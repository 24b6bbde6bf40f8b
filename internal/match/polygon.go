package match

import (
	"cmp"
	"math"
	"slices"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/geo"
	"github.com/paulmach/orb"
)

// polygonCandidate carries the per-strategy distances for one target.
// Boundary is NaN until the candidate is shortlisted.
type polygonCandidate struct {
	t        *preparedTarget
	valid    bool
	distance map[domain.Strategy]float64
}

// linkPolygon measures every candidate zone under the enabled strategies,
// picks the best target per strategy, and reconciles the picks. The exact
// boundary distance is only computed for a shortlist.
func (e *Engine) linkPolygon(src domain.SourceEntity) (domain.Linked, error) {
	srcCentroid := geo.Centroid(src.Polygon)
	found, err := e.lookup(srcCentroid)
	if err != nil {
		return domain.Linked{}, err
	}

	linked := domain.Linked{Source: src}
	srcBound := src.Polygon.Bound()

	cands := make([]*polygonCandidate, 0, len(found))
	for _, t := range found {
		if !t.hasPolygon() {
			continue
		}
		valid, flags := e.validator.CheckBounds(srcCentroid, t.rep)
		if len(flags) > 0 {
			linked.Rejections = append(linked.Rejections, domain.Rejection{TargetID: t.entity.ID, Method: domain.StrategyCentroid, Flags: flags})
			continue
		}
		cands = append(cands, &polygonCandidate{
			t:     t,
			valid: valid,
			distance: map[domain.Strategy]float64{
				domain.StrategyCentroid:      geo.DistanceMiles(srcCentroid, t.centroid),
				domain.StrategyNearestVertex: geo.NearestVertexMiles(src.Polygon, t.entity.Polygon),
				domain.StrategyBoundary:      math.NaN(),
			},
		})
	}

	if e.cfg.strategyEnabled(domain.StrategyBoundary) {
		for _, c := range e.shortlist(cands, srcBound) {
			c.distance[domain.StrategyBoundary] = geo.BoundaryMiles(src.Polygon, c.t.entity.Polygon)
		}
	}

	srcTokens := e.canon.Canonicalize(src.Name)
	var picks []domain.MatchResult
	for _, s := range domain.PolygonStrategies {
		if !e.cfg.strategyEnabled(s) {
			continue
		}
		accepted := make([]domain.MatchResult, 0, len(cands))
		for _, c := range cands {
			miles := c.distance[s]
			if s == domain.StrategyBoundary && math.IsNaN(miles) {
				continue
			}
			confidence := StrategyConfidence(miles)
			flags := e.validator.CheckDistance(miles)
			flags = append(flags, e.validator.CheckConfidence(confidence, e.cfg.PolygonThreshold)...)
			if domain.AnyRejects(flags) {
				linked.Rejections = append(linked.Rejections, domain.Rejection{
					TargetID:      c.t.entity.ID,
					Method:        s,
					Confidence:    confidence,
					DistanceMiles: miles,
					Flags:         flags,
				})
				continue
			}
			accepted = append(accepted, e.newResult(src, srcTokens, c.t, s, confidence, miles, c.valid))
		}
		if best := resolveBest(accepted, e.cfg.AmbiguityMargin); best != nil {
			picks = append(picks, *best)
		}
	}

	rec := reconcile(src.ID, picks, e.cfg.MinImprovementMiles, e.cfg.MinImprovementRatio)
	e.metrics.Reconciliations.WithLabelValues(string(rec.Decision)).Inc()
	if rec.Decision == domain.DecisionDisagreement {
		e.logger.Info("polygon strategies disagree",
			"source_id", src.ID,
			"picks", pickSummary(picks),
		)
	}
	linked.Reconciliation = &rec
	return linked, nil
}

// shortlist picks the boundary candidates: the top BoundaryShortlist by each
// cheaper strategy plus every zone whose bounding box touches the source's.
func (e *Engine) shortlist(cands []*polygonCandidate, srcBound orb.Bound) []*polygonCandidate {
	chosen := make(map[string]*polygonCandidate)
	for _, c := range cands {
		if c.t.bound.Intersects(srcBound) {
			chosen[c.t.entity.ID] = c
		}
	}

	for _, s := range []domain.Strategy{domain.StrategyCentroid, domain.StrategyNearestVertex} {
		ranked := slices.Clone(cands)
		slices.SortStableFunc(ranked, func(a, b *polygonCandidate) int {
			if c := cmp.Compare(a.distance[s], b.distance[s]); c != 0 {
				return c
			}
			return cmp.Compare(a.t.entity.ID, b.t.entity.ID)
		})
		for _, c := range ranked[:min(len(ranked), e.cfg.BoundaryShortlist)] {
			chosen[c.t.entity.ID] = c
		}
	}

	out := make([]*polygonCandidate, 0, len(chosen))
	for _, c := range chosen {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *polygonCandidate) int { return cmp.Compare(a.t.entity.ID, b.t.entity.ID) })
	return out
}

func pickSummary(picks []domain.MatchResult) map[string]string {
	out := make(map[string]string, len(picks))
	for _, p := range picks {
		out[string(p.Method)] = p.TargetID
	}
	return out
}

