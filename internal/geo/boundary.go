package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// BoundaryMiles returns the exact minimum distance between the boundaries of
// a and b, including hole rings. It is 0 when the boundaries touch or cross,
// or when one polygon lies inside the other.
//
// Edge geometry is evaluated in a local equirectangular projection, which is
// accurate at the scales the matcher links over. The closest pair found there
// is then measured geodesically.
func BoundaryMiles(a, b orb.Polygon) float64 {
	if len(a) == 0 || len(b) == 0 {
		return math.Inf(1)
	}
	if containsAny(a, b) || containsAny(b, a) {
		return 0
	}

	proj := newProjection(Centroid(a), Centroid(b))
	ea := proj.edges(a)
	eb := proj.edges(b)

	best := math.Inf(1)
	var bestA, bestB xy
	for _, sa := range ea {
		for _, sb := range eb {
			if segmentsIntersect(sa, sb) {
				return 0
			}
			pa, pb, d := closestBetween(sa, sb)
			if d < best {
				best, bestA, bestB = d, pa, pb
			}
		}
	}
	if math.IsInf(best, 1) {
		return best
	}
	return pointMiles(proj.unproject(bestA), proj.unproject(bestB))
}

// PointBoundaryMiles returns 0 when p lies inside poly, and otherwise the
// distance from p to the nearest point on poly's boundary.
func PointBoundaryMiles(p LatLng, poly orb.Polygon) float64 {
	if len(poly) == 0 {
		return math.Inf(1)
	}
	if planar.PolygonContains(poly, p.Point()) {
		return 0
	}

	proj := newProjection(p, Centroid(poly))
	q := proj.project(p.Point())

	best := math.Inf(1)
	var bestOn xy
	for _, s := range proj.edges(poly) {
		c := closestOnSegment(q, s)
		if d := c.dist(q); d < best {
			best, bestOn = d, c
		}
	}
	if math.IsInf(best, 1) {
		return best
	}
	return pointMiles(p.Point(), proj.unproject(bestOn))
}

// containsAny reports whether any exterior vertex of inner falls inside outer.
func containsAny(outer, inner orb.Polygon) bool {
	for _, v := range Vertices(inner) {
		if planar.PolygonContains(outer, v) {
			return true
		}
	}
	return false
}

type xy struct{ x, y float64 }

func (p xy) sub(q xy) xy { return xy{p.x - q.x, p.y - q.y} }
func (p xy) dot(q xy) float64 { return p.x*q.x + p.y*q.y }
func (p xy) cross(q xy) float64 { return p.x*q.y - p.y*q.x }
func (p xy) dist(q xy) float64 { return math.Hypot(p.x-q.x, p.y-q.y) }
func (p xy) lerp(q xy, t float64) xy { return xy{p.x + (q.x-p.x)*t, p.y + (q.y-p.y)*t} }

type segment struct{ a, b xy }

// projection maps lng/lat degrees onto a flat plane in meters around an origin.
type projection struct {
	lng0, lat0 float64
	kx, ky     float64
}

func newProjection(p, q LatLng) projection {
	lat0 := (p.Lat + q.Lat) / 2
	lng0 := (p.Lng + q.Lng) / 2
	ky := meanEarthRadius * math.Pi / 180
	return projection{
		lng0: lng0,
		lat0: lat0,
		kx:   ky * math.Cos(lat0*math.Pi/180),
		ky:   ky,
	}
}

func (pr projection) project(p orb.Point) xy {
	return xy{(p[0] - pr.lng0) * pr.kx, (p[1] - pr.lat0) * pr.ky}
}

func (pr projection) unproject(p xy) orb.Point {
	return orb.Point{p.x/pr.kx + pr.lng0, p.y/pr.ky + pr.lat0}
}

func (pr projection) edges(poly orb.Polygon) []segment {
	var out []segment
	for _, ring := range poly {
		n := len(ring)
		if n < 2 {
			continue
		}
		for i := 0; i < n-1; i++ {
			out = append(out, segment{pr.project(ring[i]), pr.project(ring[i+1])})
		}
		if ring[0] != ring[n-1] {
			out = append(out, segment{pr.project(ring[n-1]), pr.project(ring[0])})
		}
	}
	return out
}

func orientation(a, b, c xy) float64 {
	return b.sub(a).cross(c.sub(a))
}

func onSegment(p xy, s segment) bool {
	return math.Min(s.a.x, s.b.x) <= p.x && p.x <= math.Max(s.a.x, s.b.x) &&
		math.Min(s.a.y, s.b.y) <= p.y && p.y <= math.Max(s.a.y, s.b.y)
}

func segmentsIntersect(s, t segment) bool {
	d1 := orientation(t.a, t.b, s.a)
	d2 := orientation(t.a, t.b, s.b)
	d3 := orientation(s.a, s.b, t.a)
	d4 := orientation(s.a, s.b, t.b)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(s.a, t):
		return true
	case d2 == 0 && onSegment(s.b, t):
		return true
	case d3 == 0 && onSegment(t.a, s):
		return true
	case d4 == 0 && onSegment(t.b, s):
		return true
	}
	return false
}

func closestOnSegment(p xy, s segment) xy {
	d := s.b.sub(s.a)
	l2 := d.dot(d)
	if l2 == 0 {
		return s.a
	}
	t := p.sub(s.a).dot(d) / l2
	t = math.Max(0, math.Min(1, t))
	return s.a.lerp(s.b, t)
}

// closestBetween returns the closest pair between two non-intersecting
// segments. For disjoint segments the minimum is always attained at an
// endpoint of one of them.
func closestBetween(s, t segment) (xy, xy, float64) {
	type pair struct{ p, q xy }
	cands := [4]pair{
		{s.a, closestOnSegment(s.a, t)},
		{s.b, closestOnSegment(s.b, t)},
		{closestOnSegment(t.a, s), t.a},
		{closestOnSegment(t.b, s), t.b},
	}
	best := cands[0]
	bestD := best.p.dist(best.q)
	for _, c := range cands[1:] {
		if d := c.p.dist(c.q); d < bestD {
			best, bestD = c, d
		}
	}
	return best.p, best.q, bestD
}
