package geo

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	orbgeo "github.com/paulmach/orb/geo"
)

// ErrInvalidGeometry reports malformed, empty, or unsupported geometry.
var ErrInvalidGeometry = errors.New("invalid geometry")

var sridPrefix = regexp.MustCompile(`(?i)^\s*SRID=\d+\s*;\s*`)

// ParseWKT parses well-known text, stripping an optional SRID=nnnn; prefix.
func ParseWKT(s string) (orb.Geometry, error) {
	s = strings.TrimSpace(sridPrefix.ReplaceAllString(s, ""))
	if s == "" {
		return nil, fmt.Errorf("%w: empty wkt", ErrInvalidGeometry)
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return g, nil
}

// ParsePolygon parses WKT and reduces it to a single valid polygon.
func ParsePolygon(s string) (orb.Polygon, error) {
	g, err := ParseWKT(s)
	if err != nil {
		return nil, err
	}
	return PolygonFromGeometry(g)
}

// ParsePoint parses a WKT POINT.
func ParsePoint(s string) (LatLng, error) {
	g, err := ParseWKT(s)
	if err != nil {
		return LatLng{}, err
	}
	p, ok := g.(orb.Point)
	if !ok {
		return LatLng{}, fmt.Errorf("%w: expected POINT, got %s", ErrInvalidGeometry, g.GeoJSONType())
	}
	ll := FromPoint(p)
	if !ll.Valid() {
		return LatLng{}, fmt.Errorf("%w: point out of range", ErrInvalidGeometry)
	}
	return ll, nil
}

// PolygonFromGeometry validates a polygon, or picks the largest-area valid
// member of a multipolygon.
func PolygonFromGeometry(g orb.Geometry) (orb.Polygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return validPolygon(v)
	case orb.Ring:
		return validPolygon(orb.Polygon{v})
	case orb.MultiPolygon:
		var (
			best     orb.Polygon
			bestArea = -1.0
		)
		for _, member := range v {
			p, err := validPolygon(member)
			if err != nil {
				continue
			}
			if a := orbgeo.Area(p); a > bestArea {
				best, bestArea = p, a
			}
		}
		if best == nil {
			return nil, fmt.Errorf("%w: multipolygon has no valid members", ErrInvalidGeometry)
		}
		return best, nil
	case nil:
		return nil, fmt.Errorf("%w: nil geometry", ErrInvalidGeometry)
	default:
		return nil, fmt.Errorf("%w: unsupported type %s", ErrInvalidGeometry, g.GeoJSONType())
	}
}

func validPolygon(p orb.Polygon) (orb.Polygon, error) {
	if len(p) == 0 || len(p[0]) == 0 {
		return nil, fmt.Errorf("%w: empty polygon", ErrInvalidGeometry)
	}
	out := make(orb.Polygon, 0, len(p))
	for i, ring := range p {
		for _, pt := range ring {
			if !finiteLngLat(pt) {
				return nil, fmt.Errorf("%w: coordinate out of range", ErrInvalidGeometry)
			}
		}
		if distinct(ring) < 3 {
			if i == 0 {
				return nil, fmt.Errorf("%w: exterior ring has fewer than 3 distinct vertices", ErrInvalidGeometry)
			}
			continue
		}
		out = append(out, closeRing(ring))
	}
	return out, nil
}

func finiteLngLat(p orb.Point) bool {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
		return false
	}
	return p[0] >= -180 && p[0] <= 180 && p[1] >= -90 && p[1] <= 90
}

func distinct(r orb.Ring) int {
	seen := make(map[orb.Point]struct{}, len(r))
	for _, p := range r {
		seen[p] = struct{}{}
	}
	return len(seen)
}

func closeRing(r orb.Ring) orb.Ring {
	if r[0] == r[len(r)-1] {
		return r
	}
	closed := make(orb.Ring, len(r), len(r)+1)
	copy(closed, r)
	return append(closed, r[0])
}
