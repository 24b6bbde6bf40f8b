// Package geo holds the geometry primitives used by the matcher: geodesic
// distance, vertex centroids, nearest-vertex and exact boundary distances,
// and WKT parsing.
//
// Two coordinate orderings exist and must not be mixed. Geometry values
// (orb.Point, orb.Ring, orb.Polygon) are longitude-then-latitude, matching
// WKT. Plain coordinate pairs are [LatLng], latitude-then-longitude, matching
// the source record fields. Convert only through [LatLng.Point] and
// [FromPoint].
package geo
