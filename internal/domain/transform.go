package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-linker/internal/geo"
)

// timestampLayouts are tried in order when parsing source timestamps.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseRawEvent deserializes a RawEvent's value into a SourceEntity.
func ParseRawEvent(raw RawEvent) (SourceEntity, error) {
	var rec SourceRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return SourceEntity{}, fmt.Errorf("parse raw event: %w", err)
	}
	return ParseSourceRecord(rec)
}

// ParseSourceRecord validates a source record. A malformed perimeter is an
// ErrGeometryInvalid error; callers decide whether to skip the source. A
// malformed data bag is not an error: it is reported in DataErr.
func ParseSourceRecord(rec SourceRecord) (SourceEntity, error) {
	lat, err := parseCoordinate(rec.Lat)
	if err != nil {
		return SourceEntity{}, fmt.Errorf("source %q lat: %w", rec.ID, err)
	}
	lng, err := parseCoordinate(rec.Lng)
	if err != nil {
		return SourceEntity{}, fmt.Errorf("source %q lng: %w", rec.ID, err)
	}

	src := SourceEntity{
		ID:       strings.TrimSpace(rec.ID),
		Name:     strings.TrimSpace(rec.Name),
		Location: geo.LatLng{Lat: lat, Lng: lng},
	}

	if wkt := strings.TrimSpace(rec.PolygonWKT); wkt != "" {
		poly, err := geo.ParsePolygon(wkt)
		if err != nil {
			return SourceEntity{}, fmt.Errorf("source %q polygon: %w", rec.ID, err)
		}
		src.Polygon = poly
		if !src.Location.Valid() {
			src.Location = geo.Centroid(poly)
		}
	}
	if !src.Location.Valid() {
		return SourceEntity{}, fmt.Errorf("source %q: %w: missing or out-of-range location", rec.ID, ErrGeometryInvalid)
	}

	if ts := strings.TrimSpace(rec.Timestamp); ts != "" {
		t, err := parseTimestamp(ts)
		if err != nil {
			return SourceEntity{}, fmt.Errorf("source %q timestamp: %w", rec.ID, err)
		}
		src.Timestamp = &t
	}

	src.Attributes, err = parseAttributes(rec.Data)
	if err != nil {
		src.Attributes = Attributes{Extra: rec.Data}
		src.DataErr = fmt.Errorf("%w: %w", ErrMalformedData, err)
	}

	if src.ID == "" {
		src.ID = generateID(src.Name, src.Location, rec.Timestamp)
	}
	return src, nil
}

// ParseTargetRecord validates a target record. Targets with neither a valid
// point nor a valid polygon return ErrGeometryInvalid.
func ParseTargetRecord(rec TargetRecord) (TargetEntity, error) {
	tgt := TargetEntity{
		ID:          strings.TrimSpace(rec.ID),
		Name:        strings.TrimSpace(rec.Name),
		Attribution: strings.TrimSpace(rec.Attribution),
		Dataset:     strings.TrimSpace(rec.Dataset),
		Status:      strings.TrimSpace(rec.Status),
	}
	if tgt.ID == "" {
		return TargetEntity{}, fmt.Errorf("target %q: missing id", rec.Name)
	}

	if wkt := strings.TrimSpace(rec.PointWKT); wkt != "" {
		p, err := geo.ParsePoint(wkt)
		if err != nil {
			return TargetEntity{}, fmt.Errorf("target %q point: %w", tgt.ID, err)
		}
		tgt.Location = &p
	}
	if wkt := strings.TrimSpace(rec.PolygonWKT); wkt != "" {
		poly, err := geo.ParsePolygon(wkt)
		if err != nil {
			return TargetEntity{}, fmt.Errorf("target %q polygon: %w", tgt.ID, err)
		}
		tgt.Polygon = poly
	}
	if tgt.Location == nil && tgt.Polygon == nil {
		return TargetEntity{}, fmt.Errorf("target %q: %w: no geometry", tgt.ID, ErrGeometryInvalid)
	}
	return tgt, nil
}

// ParseTargets parses every record, collecting a Warning for each record that
// fails instead of aborting.
func ParseTargets(recs []TargetRecord) ([]TargetEntity, []Warning) {
	out := make([]TargetEntity, 0, len(recs))
	var warnings []Warning
	for _, rec := range recs {
		tgt, err := ParseTargetRecord(rec)
		if err != nil {
			warnings = append(warnings, Warning{EntityID: rec.ID, Err: err})
			continue
		}
		out = append(out, tgt)
	}
	return out, warnings
}

// ParseSources is the source counterpart of ParseTargets. A source whose data
// bag is malformed is kept and also reported.
func ParseSources(recs []SourceRecord) ([]SourceEntity, []Warning) {
	out := make([]SourceEntity, 0, len(recs))
	var warnings []Warning
	for _, rec := range recs {
		src, err := ParseSourceRecord(rec)
		if err != nil {
			warnings = append(warnings, Warning{EntityID: rec.ID, Err: err})
			continue
		}
		if src.DataErr != nil {
			warnings = append(warnings, Warning{EntityID: src.ID, Err: src.DataErr})
		}
		out = append(out, src)
	}
	return out, warnings
}

func parseCoordinate(n json.Number) (float64, error) {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// parseAttributes reads the interpreted keys from the data bag. The bag is
// sometimes double encoded as a JSON string.
func parseAttributes(data json.RawMessage) (Attributes, error) {
	if len(data) == 0 || string(data) == "null" {
		return Attributes{}, nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return Attributes{}, nil
		}
		data = json.RawMessage(s)
	}

	var bag struct {
		Acres          *float64 `json:"acres"`
		AcresBurned    *float64 `json:"acres_burned"`
		ContainmentPct *float64 `json:"containment"`
		Prescribed     *bool    `json:"is_prescribed"`
		County         string   `json:"county"`
	}
	if err := json.Unmarshal(data, &bag); err != nil {
		return Attributes{}, err
	}

	attrs := Attributes{
		Acres:          bag.Acres,
		ContainmentPct: bag.ContainmentPct,
		Prescribed:     bag.Prescribed,
		County:         bag.County,
		Extra:          data,
	}
	if attrs.Acres == nil {
		attrs.Acres = bag.AcresBurned
	}
	return attrs, nil
}

// generateID creates a deterministic ID from the identifying fields.
func generateID(name string, loc geo.LatLng, timestamp string) string {
	key := fmt.Sprintf("%s|%.4f|%.4f|%s", strings.ToLower(name), loc.Lat, loc.Lng, timestamp)
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:12])
}
