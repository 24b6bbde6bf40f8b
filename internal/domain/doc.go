// Package domain models the records the linker consumes and produces.
//
// # Inputs
//
// Source records are wildfire incidents:
//
//	{id, name, lat, lng, [polygon_wkt], [timestamp], [data]}
//
// where data is the upstream JSON attribute bag. Only the keys named in
// [Attributes] are interpreted; the full bag is carried through opaquely in
// [Attributes.Extra].
//
// Target records are evacuation zones or fire perimeters:
//
//	{id, name, attribution, [dataset], [point_wkt|polygon_wkt], [status]}
//
// # Coordinate Ordering
//
// Plain coordinate pairs (the lat and lng fields) are latitude first. All WKT
// and orb geometry is longitude first. Parsing converts between the two in
// exactly one place, through the geo package, so an axis swap cannot slip in
// field by field.
//
// # Outputs
//
// Matching yields a [Linked] value per source: the accepted [MatchResult] in
// point modes, or a [Reconciliation] of per-strategy picks in polygon mode,
// plus the diagnostic [Rejection] list. [NewLinkedRecord] flattens that onto
// the source fields (evacuation_zone, evacuation_distance_miles, ...) for
// the sink topic and for CLI output.
//
// # ID Generation
//
// Sources without an id get a deterministic SHA-256 of name|lat|lng|timestamp
// so replays produce the same keys. See [generateID].
package domain
