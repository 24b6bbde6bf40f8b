package match

import (
	"testing"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/geo"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func perimeterZone(id, name string, minLng, minLat, maxLng, maxLat float64) domain.TargetEntity {
	return domain.TargetEntity{ID: id, Name: name, Dataset: "perimeters", Polygon: rect(minLng, minLat, maxLng, maxLat)}
}

func polygonConfig() Config {
	cfg := DefaultConfig()
	cfg.Mode = domain.ModePolygon
	cfg.CellSize = 0.1
	return cfg
}

func TestLinkPolygon_BoundaryContactOverridesCentroid(t *testing.T) {
	e := newTestEngine(t, polygonConfig(),
		// Long strip overlapping the source on its east edge; centroid ~5 mi away.
		perimeterZone("strip", "Strip", -119.985, 37.00, -119.80, 37.02),
		// Small square half a mile west; centroid ~1.7 mi away.
		perimeterZone("square", "Square", -120.03, 37.00, -120.01, 37.02),
	)
	src := domain.SourceEntity{
		ID:       "s1",
		Name:     "Creek",
		Location: incident("", "", 37.01, -119.99).Location,
		Polygon:  rect(-120.00, 37.00, -119.98, 37.02),
	}

	linked, err := e.Link(src)
	require.NoError(t, err)
	assert.Equal(t, domain.ModePolygon, linked.Mode)
	require.NotNil(t, linked.Reconciliation)

	rec := linked.Reconciliation
	picks := map[domain.Strategy]string{}
	for _, p := range rec.Picks {
		picks[p.Method] = p.TargetID
	}
	assert.Equal(t, map[domain.Strategy]string{
		domain.StrategyCentroid:      "square",
		domain.StrategyNearestVertex: "strip",
		domain.StrategyBoundary:      "strip",
	}, picks)

	assert.Equal(t, domain.DecisionBoundaryContact, rec.Decision)
	require.NotNil(t, linked.Best())
	assert.Equal(t, "strip", linked.Best().TargetID)
	assert.Zero(t, linked.Best().DistanceMiles)
	assert.InDelta(t, 1.0, linked.Best().Confidence, 1e-9)
}

func TestLinkPolygon_FallsBackToPointWithoutPerimeter(t *testing.T) {
	e := newTestEngine(t, polygonConfig(), zone("z1", "Glass", 38.5004, -122.5))

	linked, err := e.Link(incident("s1", "Glass", 38.5, -122.5))
	require.NoError(t, err)
	assert.Equal(t, domain.ModePoint, linked.Mode)
	assert.Nil(t, linked.Reconciliation)
	require.NotNil(t, linked.Match)
	assert.Equal(t, domain.StrategyPoint, linked.Match.Method)
}

func TestLinkPolygon_IgnoresPointTargets(t *testing.T) {
	e := newTestEngine(t, polygonConfig(), zone("z1", "Creek", 37.01, -119.99))

	linked, err := e.Link(domain.SourceEntity{ID: "s1", Name: "Creek", Polygon: rect(-120.00, 37.00, -119.98, 37.02)})
	require.NoError(t, err)
	require.NotNil(t, linked.Reconciliation)
	assert.Equal(t, domain.DecisionNoMatch, linked.Reconciliation.Decision)
	assert.Nil(t, linked.Best())
}

func TestLinkPolygon_SingleStrategy(t *testing.T) {
	cfg := polygonConfig()
	cfg.Strategies = []domain.Strategy{domain.StrategyCentroid}
	e := newTestEngine(t, cfg, perimeterZone("square", "Square", -120.03, 37.00, -120.01, 37.02))

	linked, err := e.Link(domain.SourceEntity{ID: "s1", Polygon: rect(-120.00, 37.00, -119.98, 37.02)})
	require.NoError(t, err)
	require.Len(t, linked.Reconciliation.Picks, 1)
	assert.Equal(t, domain.DecisionConsensus, linked.Reconciliation.Decision)
	assert.Equal(t, "square", linked.Best().TargetID)
}

func TestLinkPolygon_NearestVertexUsesEveryVertex(t *testing.T) {
	// West edge densely sampled with collinear vertices.
	ring := orb.Ring{{-120.00, 37.00}, {-119.90, 37.00}, {-119.90, 37.10}, {-120.00, 37.10}}
	for i := 1; i < 3000; i++ {
		ring = append(ring, orb.Point{-120.00, 37.10 - 0.1*float64(i)/3000})
	}
	ring = append(ring, ring[0])
	dense := domain.TargetEntity{ID: "dense", Name: "Dense", Dataset: "perimeters", Polygon: orb.Polygon{ring}}

	cfg := polygonConfig()
	cfg.Strategies = []domain.Strategy{domain.StrategyNearestVertex}
	e := newTestEngine(t, cfg, dense)

	// Small square just west of the edge midpoint.
	src := domain.SourceEntity{ID: "s1", Name: "Dense", Polygon: rect(-120.006, 37.049, -120.005, 37.051)}
	linked, err := e.Link(src)
	require.NoError(t, err)
	require.NotNil(t, linked.Best())

	best := linked.Best()
	assert.Equal(t, domain.StrategyNearestVertex, best.Method)
	assert.InDelta(t, geo.NearestVertexMiles(src.Polygon, dense.Polygon), best.DistanceMiles, 1e-9)
	assert.InDelta(t, 0.2757, best.DistanceMiles, 0.002)
	assert.InDelta(t, 1/(1+best.DistanceMiles), best.Confidence, 1e-9)
}

func TestLinkPolygon_BoundsUseLabelPoint(t *testing.T) {
	// Perimeter straddles the northern edge of the box; its centroid is
	// outside but the label point is inside.
	label := geo.LatLng{Lat: 41.98, Lng: -121.95}
	straddling := perimeterZone("border", "Border", -122.0, 41.95, -121.9, 42.2)
	straddling.Location = &label
	e := newTestEngine(t, polygonConfig(), straddling)

	linked, err := e.Link(domain.SourceEntity{ID: "s1", Name: "Border", Polygon: rect(-122.0, 41.90, -121.9, 41.94)})
	require.NoError(t, err)
	for _, r := range linked.Rejections {
		assert.NotContains(t, r.Flags, domain.FlagOutOfBounds)
	}
	require.NotNil(t, linked.Best())
	assert.Equal(t, "border", linked.Best().TargetID)
	assert.True(t, linked.Best().GeographicValid)
}

func TestLinkPerimeterPoint_InsideIsZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = domain.ModePerimeterPoint
	e := newTestEngine(t, cfg, zone("z1", "Zone 7", 37.01, -119.99))

	linked, err := e.Link(domain.SourceEntity{
		ID:       "s1",
		Name:     "Creek",
		Location: incident("", "", 37.01, -119.99).Location,
		Polygon:  rect(-120.00, 37.00, -119.98, 37.02),
	})
	require.NoError(t, err)
	require.NotNil(t, linked.Match)
	assert.Equal(t, domain.StrategyPointInPerimeter, linked.Match.Method)
	assert.Zero(t, linked.Match.DistanceMiles)
	assert.InDelta(t, 0.60, linked.Match.Confidence, 1e-9)
}

func result(target string, method domain.Strategy, miles float64) domain.MatchResult {
	return domain.MatchResult{SourceID: "s1", TargetID: target, Method: method, DistanceMiles: miles, Confidence: StrategyConfidence(miles)}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name          string
		picks         []domain.MatchResult
		decision      domain.Decision
		authoritative string
	}{
		{
			name:     "no picks",
			decision: domain.DecisionNoMatch,
		},
		{
			name: "boundary contact",
			picks: []domain.MatchResult{
				result("b", domain.StrategyCentroid, 1.0),
				result("a", domain.StrategyBoundary, 0),
			},
			decision:      domain.DecisionBoundaryContact,
			authoritative: "a",
		},
		{
			name: "boundary materially closer",
			picks: []domain.MatchResult{
				result("b", domain.StrategyCentroid, 2.0),
				result("b", domain.StrategyNearestVertex, 1.5),
				result("a", domain.StrategyBoundary, 0.5),
			},
			decision:      domain.DecisionBoundaryCloser,
			authoritative: "a",
		},
		{
			name: "boundary closer by too little",
			picks: []domain.MatchResult{
				result("b", domain.StrategyCentroid, 1.05),
				result("a", domain.StrategyBoundary, 1.0),
			},
			decision: domain.DecisionDisagreement,
		},
		{
			name: "ratio too small",
			picks: []domain.MatchResult{
				result("b", domain.StrategyCentroid, 10.5),
				result("a", domain.StrategyBoundary, 10.0),
			},
			decision: domain.DecisionDisagreement,
		},
		{
			name: "consensus",
			picks: []domain.MatchResult{
				result("a", domain.StrategyCentroid, 3.0),
				result("a", domain.StrategyNearestVertex, 1.0),
				result("a", domain.StrategyBoundary, 0.8),
			},
			decision:      domain.DecisionConsensus,
			authoritative: "a",
		},
		{
			name: "disagreement without boundary",
			picks: []domain.MatchResult{
				result("a", domain.StrategyCentroid, 3.0),
				result("b", domain.StrategyNearestVertex, 1.0),
			},
			decision: domain.DecisionDisagreement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := reconcile("s1", tt.picks, 0.1, 0.1)
			assert.Equal(t, tt.decision, rec.Decision)
			assert.Equal(t, tt.picks, rec.Picks)
			if tt.authoritative == "" {
				assert.Nil(t, rec.Authoritative)
				return
			}
			require.NotNil(t, rec.Authoritative)
			assert.Equal(t, tt.authoritative, rec.Authoritative.TargetID)
		})
	}
}

func TestResolveBest_Ordering(t *testing.T) {
	results := []domain.MatchResult{
		{TargetID: "c", Confidence: 0.7, DistanceMiles: 1},
		{TargetID: "b", Confidence: 0.9, DistanceMiles: 2},
		{TargetID: "a", Confidence: 0.9, DistanceMiles: 2},
		{TargetID: "d", Confidence: 0.9, DistanceMiles: 1},
	}

	best := resolveBest(results, 0)
	require.NotNil(t, best)
	assert.Equal(t, "d", best.TargetID)
	assert.Equal(t, []string{"d", "a", "b", "c"}, []string{results[0].TargetID, results[1].TargetID, results[2].TargetID, results[3].TargetID})
	assert.Contains(t, best.QualityFlags, domain.FlagAmbiguous)
}

func TestResolveBest_Empty(t *testing.T) {
	assert.Nil(t, resolveBest(nil, 0.05))
}
