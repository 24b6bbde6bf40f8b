package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/couchcryptid/wildfire-linker/internal/geo"
	"github.com/paulmach/orb"
)

// SourceRecord is the wire form of a wildfire incident.
type SourceRecord struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Lat        json.Number     `json:"lat"`
	Lng        json.Number     `json:"lng"`
	PolygonWKT string          `json:"polygon_wkt,omitempty"`
	Timestamp  string          `json:"timestamp,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// TargetRecord is the wire form of an evacuation zone or perimeter.
type TargetRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Attribution string `json:"attribution"`
	Dataset     string `json:"dataset,omitempty"`
	PointWKT    string `json:"point_wkt,omitempty"`
	PolygonWKT  string `json:"polygon_wkt,omitempty"`
	Status      string `json:"status,omitempty"`
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Attributes are the interpreted keys of a source's data bag.
type Attributes struct {
	Acres          *float64        `json:"acres,omitempty"`
	ContainmentPct *float64        `json:"containment_pct,omitempty"`
	Prescribed     *bool           `json:"prescribed,omitempty"`
	County         string          `json:"county,omitempty"`
	PlaceName      string          `json:"place_name,omitempty"`
	Extra          json.RawMessage `json:"-"`
}

// SourceEntity is a parsed incident. Polygon is nil for point-only records.
type SourceEntity struct {
	ID         string
	Name       string
	Location   geo.LatLng
	Polygon    orb.Polygon
	Timestamp  *time.Time
	Attributes Attributes
	// DataErr wraps ErrMalformedData when the data bag was not interpretable.
	DataErr error
}

// HasPolygon reports whether the source carries a perimeter.
func (s SourceEntity) HasPolygon() bool { return len(s.Polygon) > 0 }

// TargetEntity is a parsed zone or perimeter.
type TargetEntity struct {
	ID          string
	Name        string
	Attribution string
	Dataset     string
	Location    *geo.LatLng
	Polygon     orb.Polygon
	Status      string
}

// Representative is the point used for indexing and bounds checks: the
// explicit location when present, otherwise the polygon centroid.
func (t TargetEntity) Representative() (geo.LatLng, bool) {
	if t.Location != nil {
		return *t.Location, t.Location.Valid()
	}
	if len(t.Polygon) > 0 {
		c := geo.Centroid(t.Polygon)
		return c, c.Valid()
	}
	return geo.LatLng{}, false
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
