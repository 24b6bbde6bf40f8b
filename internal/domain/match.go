package domain

import (
	"slices"
	"time"
)

// Mode selects how sources are compared with targets.
type Mode string

const (
	// ModePoint compares an incident point with each zone's representative point.
	ModePoint Mode = "point"
	// ModePolygon compares an incident perimeter with zone polygons under
	// several distance strategies and reconciles their picks.
	ModePolygon Mode = "polygon"
	// ModePerimeterPoint compares an incident perimeter with zone points;
	// a point inside the perimeter is at distance 0.
	ModePerimeterPoint Mode = "perimeter_point"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(s); m {
	case ModePoint, ModePolygon, ModePerimeterPoint:
		return m, true
	}
	return "", false
}

// Strategy names the geometry method that produced a distance.
type Strategy string

const (
	StrategyPoint            Strategy = "point"
	StrategyCentroid         Strategy = "centroid"
	StrategyNearestVertex    Strategy = "nearest_vertex"
	StrategyBoundary         Strategy = "boundary"
	StrategyPointInPerimeter Strategy = "point_in_perimeter"
)

// PolygonStrategies lists the polygon-mode strategies in reporting order.
var PolygonStrategies = []Strategy{StrategyCentroid, StrategyNearestVertex, StrategyBoundary}

// ParseStrategy validates a polygon strategy name.
func ParseStrategy(s string) (Strategy, bool) {
	st := Strategy(s)
	return st, slices.Contains(PolygonStrategies, st)
}

// QualityFlag is a machine-readable validation outcome.
type QualityFlag string

const (
	FlagOutOfBounds      QualityFlag = "out_of_bounds"
	FlagDistanceExceeded QualityFlag = "distance_exceeded"
	FlagLowConfidence    QualityFlag = "low_confidence"
	FlagGeometryInvalid  QualityFlag = "geometry_invalid"

	// Informational flags never block emission.
	FlagNoNameOverlap QualityFlag = "no_name_overlap"
	FlagAmbiguous     QualityFlag = "ambiguous_match"
)

// Rejects reports whether the flag makes a candidate non-emittable.
func (f QualityFlag) Rejects() bool {
	switch f {
	case FlagOutOfBounds, FlagDistanceExceeded, FlagLowConfidence, FlagGeometryInvalid:
		return true
	}
	return false
}

// AnyRejects reports whether any flag in flags is a rejection.
func AnyRejects(flags []QualityFlag) bool {
	return slices.ContainsFunc(flags, QualityFlag.Rejects)
}

// MatchCandidate is a scored source/target pairing prior to validation.
type MatchCandidate struct {
	SourceID      string
	TargetID      string
	NameScore     float64
	NameEditRatio float64
	DistanceMiles float64
	Method        Strategy
}

// MatchResult is an accepted link between a source and a target.
type MatchResult struct {
	SourceID        string        `json:"source_id"`
	TargetID        string        `json:"target_id"`
	TargetName      string        `json:"target_name"`
	Attribution     string        `json:"attribution,omitempty"`
	Dataset         string        `json:"dataset,omitempty"`
	Confidence      float64       `json:"confidence"`
	DistanceMiles   float64       `json:"distance_miles"`
	NameScore       float64       `json:"name_score"`
	NameEditRatio   float64       `json:"name_edit_ratio"`
	GeographicValid bool          `json:"geographic_valid"`
	QualityFlags    []QualityFlag `json:"quality_flags"`
	Method          Strategy      `json:"method"`
	MatchedAt       time.Time     `json:"matched_at"`
	RunID           string        `json:"run_id,omitempty"`
}

// Rejection records why a candidate was not emitted. DistanceMiles is zero
// when the candidate was rejected before distance evaluation.
type Rejection struct {
	TargetID      string        `json:"target_id"`
	Method        Strategy      `json:"method"`
	Confidence    float64       `json:"confidence"`
	DistanceMiles float64       `json:"distance_miles"`
	Flags         []QualityFlag `json:"flags"`
}

// Decision is the outcome of polygon-mode reconciliation.
type Decision string

const (
	DecisionBoundaryContact Decision = "boundary_contact"
	DecisionBoundaryCloser  Decision = "boundary_closer"
	DecisionConsensus       Decision = "consensus"
	DecisionDisagreement    Decision = "disagreement"
	DecisionNoMatch         Decision = "no_match"
)

// Reconciliation reports each strategy's best pick side by side. Authoritative
// is nil when the strategies disagree and no rule settles it.
type Reconciliation struct {
	SourceID      string        `json:"source_id"`
	Picks         []MatchResult `json:"picks"`
	Authoritative *MatchResult  `json:"authoritative,omitempty"`
	Decision      Decision      `json:"decision"`
}

// Linked is the complete matching outcome for one source.
type Linked struct {
	Source         SourceEntity
	Mode           Mode
	Match          *MatchResult
	Reconciliation *Reconciliation
	Rejections     []Rejection
}

// Best is the single authoritative match, if any.
func (l Linked) Best() *MatchResult {
	if l.Match != nil {
		return l.Match
	}
	if l.Reconciliation != nil {
		return l.Reconciliation.Authoritative
	}
	return nil
}
