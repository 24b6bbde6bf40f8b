package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

const (
	metersPerMile = 1609.344

	// meanEarthRadius is the IUGG mean radius in meters. orb measures on the
	// equatorial radius, which overstates mid-latitude distances slightly.
	meanEarthRadius = 6371008.8

	// MilesPerDegreeLat is the ground length of one degree of latitude.
	MilesPerDegreeLat = meanEarthRadius * math.Pi / 180 / metersPerMile
)

// MilesPerDegreeLng is the ground length of one degree of longitude at lat.
func MilesPerDegreeLng(lat float64) float64 {
	return MilesPerDegreeLat * math.Cos(lat*math.Pi/180)
}

// DistanceMiles returns the haversine great-circle distance between a and b.
func DistanceMiles(a, b LatLng) float64 {
	return pointMiles(a.Point(), b.Point())
}

func pointMiles(a, b orb.Point) float64 {
	meters := orbgeo.DistanceHaversine(a, b) * meanEarthRadius / orb.EarthRadius
	return meters / metersPerMile
}

// Centroid is the arithmetic mean of the exterior ring's vertices. It is not
// area weighted.
func Centroid(poly orb.Polygon) LatLng {
	vs := Vertices(poly)
	if len(vs) == 0 {
		return LatLng{Lat: math.NaN(), Lng: math.NaN()}
	}
	var sumLng, sumLat float64
	for _, v := range vs {
		sumLng += v[0]
		sumLat += v[1]
	}
	n := float64(len(vs))
	return LatLng{Lat: sumLat / n, Lng: sumLng / n}
}

// Vertices returns the exterior ring without its closing vertex.
func Vertices(poly orb.Polygon) []orb.Point {
	if len(poly) == 0 {
		return nil
	}
	ring := poly[0]
	if n := len(ring); n > 1 && ring[0] == ring[n-1] {
		return ring[:n-1]
	}
	return ring
}

// NearestVertexMiles is the minimum geodesic distance over all pairs of
// exterior vertices of a and b.
func NearestVertexMiles(a, b orb.Polygon) float64 {
	return MinPairMiles(Vertices(a), Vertices(b))
}

// MinPairMiles is the minimum geodesic distance over all pairs drawn from a
// and b. It returns +Inf when either slice is empty.
func MinPairMiles(a, b []orb.Point) float64 {
	best := math.Inf(1)
	for _, pa := range a {
		for _, pb := range b {
			if d := pointMiles(pa, pb); d < best {
				best = d
			}
		}
	}
	return best
}
