package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// LatLng is a plain WGS-84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point converts to orb's longitude-first ordering.
func (l LatLng) Point() orb.Point {
	return orb.Point{l.Lng, l.Lat}
}

// FromPoint converts an orb point back to a LatLng.
func FromPoint(p orb.Point) LatLng {
	return LatLng{Lat: p[1], Lng: p[0]}
}

// Valid reports whether both coordinates are finite and within range.
// The null island (0,0) is treated as missing.
func (l LatLng) Valid() bool {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lng) || math.IsInf(l.Lat, 0) || math.IsInf(l.Lng, 0) {
		return false
	}
	if l.Lat == 0 && l.Lng == 0 {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Bounds is a lat/lng bounding box used for geographic validation.
type Bounds struct {
	MinLat float64 `yaml:"min_lat" json:"min_lat"`
	MaxLat float64 `yaml:"max_lat" json:"max_lat"`
	MinLng float64 `yaml:"min_lng" json:"min_lng"`
	MaxLng float64 `yaml:"max_lng" json:"max_lng"`
}

// California is the default validation box.
var California = Bounds{MinLat: 32.5, MaxLat: 42.0, MinLng: -124.5, MaxLng: -114.0}

// Contains reports whether p lies inside the box, edges inclusive.
func (b Bounds) Contains(p LatLng) bool {
	return b.bound().Contains(p.Point())
}

// Empty reports whether the box has no area.
func (b Bounds) Empty() bool {
	return b.MinLat >= b.MaxLat || b.MinLng >= b.MaxLng
}

func (b Bounds) bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLng, b.MinLat},
		Max: orb.Point{b.MaxLng, b.MaxLat},
	}
}
