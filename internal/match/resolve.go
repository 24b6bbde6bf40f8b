package match

import (
	"cmp"
	"slices"
	"strings"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/geo"
	"github.com/couchcryptid/wildfire-linker/internal/names"
)

// linkPoint scores every candidate with the composite formula and keeps the
// single best accepted result. method is point or point_in_perimeter.
func (e *Engine) linkPoint(src domain.SourceEntity, method domain.Strategy) (domain.Linked, error) {
	mode := domain.ModePoint
	if method == domain.StrategyPointInPerimeter {
		mode = domain.ModePerimeterPoint
	}

	cands, err := e.lookup(e.queryPoint(src, mode))
	if err != nil {
		return domain.Linked{}, err
	}

	srcTokens := e.canon.Canonicalize(src.Name)
	linked := domain.Linked{Source: src}
	accepted := make([]domain.MatchResult, 0, len(cands))

	for _, t := range cands {
		valid, flags := e.validator.CheckBounds(src.Location, t.rep)
		if len(flags) > 0 {
			linked.Rejections = append(linked.Rejections, domain.Rejection{TargetID: t.entity.ID, Method: method, Flags: flags})
			continue
		}

		var miles float64
		if method == domain.StrategyPointInPerimeter {
			miles = geo.PointBoundaryMiles(t.rep, src.Polygon)
		} else {
			miles = geo.DistanceMiles(src.Location, t.rep)
		}
		nameScore := names.Jaccard(srcTokens, t.tokens)
		confidence := e.cfg.Weights.Confidence(DistanceScore(miles), nameScore, e.temporalScore(src, t.entity))

		flags = append(flags, e.validator.CheckDistance(miles)...)
		flags = append(flags, e.validator.CheckConfidence(confidence, e.cfg.Threshold)...)
		if domain.AnyRejects(flags) {
			linked.Rejections = append(linked.Rejections, domain.Rejection{
				TargetID:      t.entity.ID,
				Method:        method,
				Confidence:    confidence,
				DistanceMiles: miles,
				Flags:         flags,
			})
			continue
		}
		accepted = append(accepted, e.newResult(src, srcTokens, t, method, confidence, miles, valid))
	}

	linked.Match = resolveBest(accepted, e.cfg.AmbiguityMargin)
	return linked, nil
}

// compareResults orders by confidence descending, then distance ascending,
// then target id ascending.
func compareResults(a, b domain.MatchResult) int {
	if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
		return c
	}
	if c := cmp.Compare(a.DistanceMiles, b.DistanceMiles); c != 0 {
		return c
	}
	return strings.Compare(a.TargetID, b.TargetID)
}

// resolveBest returns the winning result, flagged ambiguous when the
// runner-up is within margin of it. It returns nil for no results.
func resolveBest(results []domain.MatchResult, margin float64) *domain.MatchResult {
	if len(results) == 0 {
		return nil
	}
	slices.SortFunc(results, compareResults)

	best := results[0]
	if len(results) > 1 && best.Confidence-results[1].Confidence <= margin {
		best.QualityFlags = append(slices.Clone(best.QualityFlags), domain.FlagAmbiguous)
	}
	return &best
}

// reconcile settles polygon-mode picks. Boundary contact always wins; a
// materially closer boundary pick wins over disagreeing picks; agreeing picks
// are a consensus; anything else is reported side by side with no
// authoritative answer.
func reconcile(sourceID string, picks []domain.MatchResult, minMiles, minRatio float64) domain.Reconciliation {
	rec := domain.Reconciliation{SourceID: sourceID, Picks: picks}
	if len(picks) == 0 {
		rec.Decision = domain.DecisionNoMatch
		return rec
	}

	var boundary *domain.MatchResult
	for i := range picks {
		if picks[i].Method == domain.StrategyBoundary {
			boundary = &picks[i]
		}
	}

	authoritative := func(r domain.MatchResult) *domain.MatchResult { return &r }

	if boundary != nil {
		if boundary.DistanceMiles == 0 {
			rec.Decision = domain.DecisionBoundaryContact
			rec.Authoritative = authoritative(*boundary)
			return rec
		}
		disagreeing, closer := 0, true
		for _, p := range picks {
			if p.Method == domain.StrategyBoundary || p.TargetID == boundary.TargetID {
				continue
			}
			disagreeing++
			if !materiallySmaller(boundary.DistanceMiles, p.DistanceMiles, minMiles, minRatio) {
				closer = false
			}
		}
		if disagreeing > 0 && closer {
			rec.Decision = domain.DecisionBoundaryCloser
			rec.Authoritative = authoritative(*boundary)
			return rec
		}
	}

	for _, p := range picks[1:] {
		if p.TargetID != picks[0].TargetID {
			rec.Decision = domain.DecisionDisagreement
			return rec
		}
	}
	rec.Decision = domain.DecisionConsensus
	if boundary != nil {
		rec.Authoritative = authoritative(*boundary)
	} else {
		rec.Authoritative = authoritative(picks[0])
	}
	return rec
}

func materiallySmaller(candidate, other, minMiles, minRatio float64) bool {
	return other-candidate >= minMiles && candidate <= other*(1-minRatio)
}
