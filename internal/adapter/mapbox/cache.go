package mapbox

import (
	"context"
	"math"
	"sync"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/observability"
)

// DefaultPrecision rounds cache keys to three decimal places, about 110 m.
const DefaultPrecision = 3

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache keyed by
// rounded coordinates, so nearby incidents share one lookup.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache
	scale   float64
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder. precision is
// the number of decimal places kept in the key.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries, precision int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		scale:   math.Pow10(precision),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (domain.GeocodingResult, error) {
	key := c.key(lat, lng)
	if result, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if result.FormattedAddress != "" {
		c.cache.put(key, result)
	}
	return result, nil
}

// Purge drops every cached place.
func (c *CachedGeocoder) Purge() {
	c.cache.purge()
}

// Len is the number of cached places.
func (c *CachedGeocoder) Len() int {
	return c.cache.size()
}

func (c *CachedGeocoder) key(lat, lng float64) cellKey {
	return cellKey{
		lat: int64(math.Round(lat * c.scale)),
		lng: int64(math.Round(lng * c.scale)),
	}
}

type cellKey struct {
	lat, lng int64
}

// lruCache is a thread-safe LRU cache for GeocodingResults.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[cellKey]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   cellKey
	value domain.GeocodingResult
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: max(maxEntries, 1),
		entries:    make(map[cellKey]*entry),
	}
}

func (c *lruCache) get(key cellKey) (domain.GeocodingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.GeocodingResult{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key cellKey, value domain.GeocodingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.head, c.tail = nil, nil
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
