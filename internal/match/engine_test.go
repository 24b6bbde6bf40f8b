package match

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/geo"
	"github.com/couchcryptid/wildfire-linker/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, cfg Config, targets ...domain.TargetEntity) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, testLogger(), observability.NewMetricsForTesting(),
		WithClock(clockwork.NewFakeClockAt(testNow)),
		WithRunID("run-test"),
	)
	require.NoError(t, err)
	e.LoadTargets(targets)
	return e
}

func zone(id, name string, lat, lng float64) domain.TargetEntity {
	return domain.TargetEntity{ID: id, Name: name, Dataset: "zones", Location: &geo.LatLng{Lat: lat, Lng: lng}}
}

func incident(id, name string, lat, lng float64) domain.SourceEntity {
	return domain.SourceEntity{ID: id, Name: name, Location: geo.LatLng{Lat: lat, Lng: lng}}
}

func rect(minLng, minLat, maxLng, maxLat float64) orb.Polygon {
	return orb.Polygon{{
		{minLng, minLat}, {maxLng, minLat}, {maxLng, maxLat}, {minLng, maxLat}, {minLng, minLat},
	}}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold = 2
	cfg.Workers = 0

	_, err := NewEngine(cfg, testLogger(), observability.NewMetricsForTesting())
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "thresholds")
	assert.Contains(t, err.Error(), "workers")
}

func TestNewEngine_BadCanonicalizerPattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Names.PrefixPatterns = []string{"("}

	_, err := NewEngine(cfg, testLogger(), observability.NewMetricsForTesting())
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestNewEngine_CellTooSmallForDistance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellSize = 0.0001

	_, err := NewEngine(cfg, testLogger(), observability.NewMetricsForTesting())
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestNewEngine_SearchRadiusCoversMaxDistance(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	assert.Equal(t, 49, e.Status().Radius)

	cfg := DefaultConfig()
	cfg.CellSize = 0.5
	assert.Equal(t, 1, newTestEngine(t, cfg).Status().Radius)

	cfg.NeighborRadius = 3
	assert.Equal(t, 3, newTestEngine(t, cfg).Status().Radius)
}

func TestLink_DefaultConfigReachesMiles(t *testing.T) {
	// About three miles due north.
	e := newTestEngine(t, DefaultConfig(), zone("z1", "Glass", 38.5434, -122.5))

	linked, err := e.Link(incident("s1", "Glass Fire", 38.5, -122.5))
	require.NoError(t, err)
	require.NotNil(t, linked.Match)
	assert.Equal(t, "z1", linked.Match.TargetID)
	assert.InDelta(t, 3, linked.Match.DistanceMiles, 0.1)
	assert.InDelta(t, 0.9, linked.Match.Confidence, 1e-9)
}

func TestLink_DefaultConfigSeesDistanceCap(t *testing.T) {
	// About 24 miles due east at 38.5N, inside the lookup ring but past the
	// confidence threshold.
	e := newTestEngine(t, DefaultConfig(), zone("z1", "Glass", 38.5, -122.0477))

	linked, err := e.Link(incident("s1", "Glass Fire", 38.5, -122.5))
	require.NoError(t, err)
	assert.Nil(t, linked.Match)
	require.Len(t, linked.Rejections, 1)
	assert.InDelta(t, 24.5, linked.Rejections[0].DistanceMiles, 0.5)
}

func TestLink_UnbuiltIndex(t *testing.T) {
	e, err := NewEngine(DefaultConfig(), testLogger(), observability.NewMetricsForTesting())
	require.NoError(t, err)

	_, err = e.Link(incident("s1", "Oak", 38.5, -122.5))
	require.ErrorIs(t, err, domain.ErrIndexUnbuilt)
}

func TestLink_NearbyWithoutNameOverlap(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), zone("z1", "Pine Ridge", 38.5004, -122.5))

	linked, err := e.Link(incident("s1", "Oak", 38.5, -122.5))
	require.NoError(t, err)
	require.NotNil(t, linked.Match)

	m := linked.Match
	assert.Equal(t, "z1", m.TargetID)
	assert.InDelta(t, 0.03, m.DistanceMiles, 0.01)
	assert.InDelta(t, 0.60, m.Confidence, 1e-9)
	assert.Equal(t, []domain.QualityFlag{domain.FlagNoNameOverlap}, m.QualityFlags)
	assert.True(t, m.GeographicValid)
	assert.Equal(t, domain.StrategyPoint, m.Method)
	assert.Equal(t, testNow, m.MatchedAt)
	assert.Equal(t, "run-test", m.RunID)
	assert.Equal(t, domain.ModePoint, linked.Mode)
}

func TestLink_DistanceCapBeatsConfidence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellSize = 0.5
	cfg.TemporalDefault = 1.0
	// About 30 miles due north.
	e := newTestEngine(t, cfg, zone("z1", "Glass", 38.9342, -122.5))

	linked, err := e.Link(incident("s1", "Glass Fire", 38.5, -122.5))
	require.NoError(t, err)
	assert.Nil(t, linked.Match)

	require.Len(t, linked.Rejections, 1)
	r := linked.Rejections[0]
	assert.Equal(t, "z1", r.TargetID)
	assert.InDelta(t, 30, r.DistanceMiles, 0.5)
	assert.InDelta(t, 0.40, r.Confidence, 1e-9)
	assert.Equal(t, []domain.QualityFlag{domain.FlagDistanceExceeded}, r.Flags)
}

func TestLink_OutOfBoundsRejectedBeforeDistance(t *testing.T) {
	// Medford, Oregon sits just north of the California box.
	e := newTestEngine(t, DefaultConfig(), zone("z1", "Table Rock", 42.3265, -122.8756))

	linked, err := e.Link(incident("s1", "Table Rock", 42.3266, -122.8757))
	require.NoError(t, err)
	assert.Nil(t, linked.Match)
	require.Len(t, linked.Rejections, 1)
	assert.Equal(t, []domain.QualityFlag{domain.FlagOutOfBounds}, linked.Rejections[0].Flags)
	assert.Zero(t, linked.Rejections[0].DistanceMiles)
}

func TestLink_BoundsNotEnforced(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnforceBounds = false
	e := newTestEngine(t, cfg, zone("z1", "Table Rock", 42.3265, -122.8756))

	linked, err := e.Link(incident("s1", "Table Rock", 42.3266, -122.8757))
	require.NoError(t, err)
	require.NotNil(t, linked.Match)
	assert.False(t, linked.Match.GeographicValid)
	assert.NotContains(t, linked.Match.QualityFlags, domain.FlagOutOfBounds)
}

func TestLink_LowConfidence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellSize = 0.5
	// Twelve miles away: distance score 0.38, confidence 0.228.
	e := newTestEngine(t, cfg, zone("z1", "Pine", 38.6737, -122.5))

	linked, err := e.Link(incident("s1", "Oak", 38.5, -122.5))
	require.NoError(t, err)
	assert.Nil(t, linked.Match)
	require.Len(t, linked.Rejections, 1)
	assert.Equal(t, []domain.QualityFlag{domain.FlagLowConfidence}, linked.Rejections[0].Flags)
}

func TestLink_TieBreaksByTargetID(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(),
		zone("b-zone", "Glass", 38.501, -122.5),
		zone("a-zone", "Glass", 38.501, -122.5),
	)

	linked, err := e.Link(incident("s1", "Glass Fire", 38.5, -122.5))
	require.NoError(t, err)
	require.NotNil(t, linked.Match)
	assert.Equal(t, "a-zone", linked.Match.TargetID)
	assert.Contains(t, linked.Match.QualityFlags, domain.FlagAmbiguous)
}

func TestLink_NameBreaksDistanceTie(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(),
		zone("a-zone", "Creek", 38.501, -122.5),
		zone("b-zone", "Glass", 38.501, -122.5),
	)

	linked, err := e.Link(incident("s1", "CA-LNU-Glass Fire-N21A", 38.5, -122.5))
	require.NoError(t, err)
	require.NotNil(t, linked.Match)
	assert.Equal(t, "b-zone", linked.Match.TargetID)
	assert.InDelta(t, 1.0, linked.Match.NameScore, 1e-9)
	assert.NotContains(t, linked.Match.QualityFlags, domain.FlagAmbiguous)
}

func TestLink_TemporalSignal(t *testing.T) {
	cfg := DefaultConfig()
	e, err := NewEngine(cfg, testLogger(), observability.NewMetricsForTesting(),
		WithTemporalSignal(func(src domain.SourceEntity, tgt domain.TargetEntity) (float64, bool) {
			return 1, tgt.ID == "z1"
		}),
	)
	require.NoError(t, err)
	e.LoadTargets([]domain.TargetEntity{zone("z1", "Pine", 38.5004, -122.5)})

	linked, err := e.Link(incident("s1", "Oak", 38.5, -122.5))
	require.NoError(t, err)
	require.NotNil(t, linked.Match)
	assert.InDelta(t, 0.70, linked.Match.Confidence, 1e-9)
}

func TestLink_NoCandidates(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), zone("z1", "Glass", 34.0, -118.2))

	linked, err := e.Link(incident("s1", "Glass", 38.5, -122.5))
	require.NoError(t, err)
	assert.Nil(t, linked.Best())
	assert.Empty(t, linked.Rejections)
}

func TestLink_ConfidenceMonotoneInDistance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CellSize = 0.5
	cfg.Threshold = 0
	e := newTestEngine(t, cfg)

	prev := 2.0
	for _, dLat := range []float64{0.001, 0.05, 0.08, 0.12, 0.18, 0.25, 0.3} {
		e.LoadTargets([]domain.TargetEntity{zone("z1", "Glass", 38.5+dLat, -122.5)})
		linked, err := e.Link(incident("s1", "Glass", 38.5, -122.5))
		require.NoError(t, err)
		require.NotNil(t, linked.Match, "dLat=%v", dLat)
		assert.LessOrEqual(t, linked.Match.Confidence, prev, "dLat=%v", dLat)
		prev = linked.Match.Confidence
	}
}

func TestLoadTargets_Warnings(t *testing.T) {
	e, err := NewEngine(DefaultConfig(), testLogger(), observability.NewMetricsForTesting())
	require.NoError(t, err)

	warnings := e.LoadTargets([]domain.TargetEntity{
		zone("z1", "Glass", 38.5, -122.5),
		zone("z1", "Glass again", 38.6, -122.5),
		{ID: "z2", Name: "Nowhere"},
	})

	require.Len(t, warnings, 2)
	assert.Equal(t, "z1", warnings[0].EntityID)
	assert.Equal(t, "z2", warnings[1].EntityID)
}

func TestCandidates(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(),
		zone("z1", "Glass", 38.5004, -122.5),
		zone("z2", "Oak", 38.501, -122.5),
	)

	cands, err := e.Candidates(incident("s1", "Glass Fire", 38.5, -122.5))
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "z1", cands[0].TargetID)
	assert.InDelta(t, 1.0, cands[0].NameScore, 1e-9)
	assert.Equal(t, domain.StrategyPoint, cands[0].Method)
	assert.Zero(t, cands[1].NameScore)
}

func TestLink_MaxCandidatesKeepsNearest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCandidates = 1
	e := newTestEngine(t, cfg,
		zone("far", "Glass", 38.508, -122.5),
		zone("near", "Other", 38.5004, -122.5),
	)

	cands, err := e.Candidates(incident("s1", "Glass", 38.5, -122.5))
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "near", cands[0].TargetID)
}
