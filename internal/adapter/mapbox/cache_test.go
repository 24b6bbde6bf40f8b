package mapbox

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	mu     sync.Mutex
	calls  int
	result domain.GeocodingResult
	err    error
}

func (m *countingGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.result, m.err
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{FormattedAddress: "St. Helena, CA", County: "Napa"}}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedGeocoder(inner, 10, DefaultPrecision, metrics)

	r1, err := cached.ReverseGeocode(context.Background(), 38.5618, -122.5122)
	require.NoError(t, err)
	r2, err := cached.ReverseGeocode(context.Background(), 38.5618, -122.5122)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("miss")), 0)
}

func TestCachedGeocoder_RoundedKeysShareEntry(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{FormattedAddress: "St. Helena, CA"}}
	cached := NewCachedGeocoder(inner, 10, DefaultPrecision, observability.NewMetricsForTesting())

	_, _ = cached.ReverseGeocode(context.Background(), 38.56181, -122.51221)
	_, _ = cached.ReverseGeocode(context.Background(), 38.56179, -122.51219)
	assert.Equal(t, 1, inner.calls)

	_, _ = cached.ReverseGeocode(context.Background(), 38.5700, -122.5122)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_EmptyAndErrorsNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, DefaultPrecision, observability.NewMetricsForTesting())

	_, _ = cached.ReverseGeocode(context.Background(), 38.5, -122.5)
	_, _ = cached.ReverseGeocode(context.Background(), 38.5, -122.5)
	assert.Equal(t, 2, inner.calls)

	inner.err = errors.New("timeout")
	_, err := cached.ReverseGeocode(context.Background(), 38.5, -122.5)
	require.Error(t, err)
	assert.Zero(t, cached.Len())
}

func TestCachedGeocoder_Purge(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{FormattedAddress: "St. Helena, CA"}}
	cached := NewCachedGeocoder(inner, 10, DefaultPrecision, observability.NewMetricsForTesting())

	_, _ = cached.ReverseGeocode(context.Background(), 38.5, -122.5)
	require.Equal(t, 1, cached.Len())

	cached.Purge()
	assert.Zero(t, cached.Len())

	_, _ = cached.ReverseGeocode(context.Background(), 38.5, -122.5)
	assert.Equal(t, 2, inner.calls)
}

// --- LRU cache unit tests ---

func key(n int64) cellKey { return cellKey{lat: n, lng: -n} }

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put(key(1), domain.GeocodingResult{PlaceName: "A"})
	c.put(key(2), domain.GeocodingResult{PlaceName: "B"})

	result, ok := c.get(key(1))
	assert.True(t, ok)
	assert.Equal(t, "A", result.PlaceName)

	_, ok = c.get(key(9))
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put(key(1), domain.GeocodingResult{PlaceName: "A"})
	c.put(key(2), domain.GeocodingResult{PlaceName: "B"})
	c.put(key(3), domain.GeocodingResult{PlaceName: "C"}) // evicts 1

	_, ok := c.get(key(1))
	assert.False(t, ok, "1 should have been evicted")

	result, ok := c.get(key(3))
	assert.True(t, ok)
	assert.Equal(t, "C", result.PlaceName)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put(key(1), domain.GeocodingResult{PlaceName: "A"})
	c.put(key(2), domain.GeocodingResult{PlaceName: "B"})
	c.get(key(1))
	c.put(key(3), domain.GeocodingResult{PlaceName: "C"})

	_, ok := c.get(key(1))
	assert.True(t, ok, "1 was accessed recently, should not be evicted")
	_, ok = c.get(key(2))
	assert.False(t, ok, "2 should have been evicted")
}

func TestLRUCache_PurgeThenReuse(t *testing.T) {
	c := newLRUCache(2)
	c.put(key(1), domain.GeocodingResult{PlaceName: "A"})
	c.purge()
	assert.Zero(t, c.size())

	c.put(key(2), domain.GeocodingResult{PlaceName: "B"})
	c.put(key(3), domain.GeocodingResult{PlaceName: "C"})
	c.put(key(4), domain.GeocodingResult{PlaceName: "D"})
	assert.Equal(t, 2, c.size())
}
