// Package recordfile loads source and target records from CSV, JSON lines,
// or JSON array files.
package recordfile

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
)

// Format identifies the encoding of a record file.
type Format int

const (
	FormatUnknown Format = iota
	FormatCSV
	FormatJSONLines
	FormatJSON
)

// ErrUnknownFormat is returned for file extensions that are not recognized.
var ErrUnknownFormat = errors.New("unknown record file format")

// DetectFormat picks a format from the file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".jsonl", ".ndjson":
		return FormatJSONLines
	case ".json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

var sourceColumns = map[string][]string{
	"id":          {"id", "incident_id"},
	"name":        {"name", "incident_name"},
	"lat":         {"lat", "latitude"},
	"lng":         {"lng", "lon", "longitude"},
	"polygon_wkt": {"polygon_wkt", "geometry", "wkt"},
	"timestamp":   {"timestamp", "date_created"},
	"data":        {"data"},
}

var targetColumns = map[string][]string{
	"id":          {"id", "zone_id"},
	"name":        {"name", "zone_name", "display_name"},
	"attribution": {"attribution", "source"},
	"dataset":     {"dataset"},
	"point_wkt":   {"point_wkt", "geom_label"},
	"polygon_wkt": {"polygon_wkt", "geometry", "geom"},
	"status":      {"status"},
	"lat":         {"lat", "latitude", "zone_lat"},
	"lng":         {"lng", "lon", "longitude", "zone_lng"},
}

// LoadSources reads source records from path.
func LoadSources(path string) ([]domain.SourceRecord, error) {
	return load(path, sourceColumns, sourceFromRow)
}

// LoadTargets reads target records from path. CSV rows that carry lat/lng
// columns but no point_wkt get a WKT point built from them.
func LoadTargets(path string) ([]domain.TargetRecord, error) {
	return load(path, targetColumns, targetFromRow)
}

func load[T any](path string, columns map[string][]string, fromRow func(row) (T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open record file: %w", err)
	}
	defer f.Close()

	switch DetectFormat(path) {
	case FormatCSV:
		return decodeCSV(f, columns, fromRow)
	case FormatJSONLines:
		return decodeJSONLines[T](f)
	case FormatJSON:
		var out []T
		if err := json.NewDecoder(f).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

func decodeJSONLines[T any](r io.Reader) ([]T, error) {
	var out []T
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return out, nil
}

// row maps canonical column names to cell values.
type row map[string]string

func decodeCSV[T any](r io.Reader, columns map[string][]string, fromRow func(row) (T, error)) ([]T, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := mapHeader(header, columns)

	var out []T
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cells := make(row, len(index))
		for name, i := range index {
			if i < len(fields) {
				cells[name] = strings.TrimSpace(fields[i])
			}
		}
		rec, err := fromRow(cells)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// mapHeader resolves each canonical column to the first alias present in
// the header. Matching ignores case and a UTF-8 BOM on the first cell.
func mapHeader(header []string, columns map[string][]string) map[string]int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, ok := pos[h]; !ok {
			pos[h] = i
		}
	}
	index := make(map[string]int, len(columns))
	for name, aliases := range columns {
		for _, a := range aliases {
			if i, ok := pos[a]; ok {
				index[name] = i
				break
			}
		}
	}
	return index
}

func sourceFromRow(r row) (domain.SourceRecord, error) {
	rec := domain.SourceRecord{
		ID:         r["id"],
		Name:       r["name"],
		Lat:        json.Number(r["lat"]),
		Lng:        json.Number(r["lng"]),
		PolygonWKT: r["polygon_wkt"],
		Timestamp:  r["timestamp"],
	}
	if d := r["data"]; d != "" {
		if json.Valid([]byte(d)) {
			rec.Data = json.RawMessage(d)
		} else {
			// Kept as a JSON string; parsing reports it as a malformed bag.
			rec.Data, _ = json.Marshal(d)
		}
	}
	return rec, nil
}

func targetFromRow(r row) (domain.TargetRecord, error) {
	rec := domain.TargetRecord{
		ID:          r["id"],
		Name:        r["name"],
		Attribution: r["attribution"],
		Dataset:     r["dataset"],
		PointWKT:    r["point_wkt"],
		PolygonWKT:  r["polygon_wkt"],
		Status:      r["status"],
	}
	if rec.PointWKT == "" && r["lat"] != "" && r["lng"] != "" {
		rec.PointWKT = fmt.Sprintf("POINT(%s %s)", r["lng"], r["lat"])
	}
	return rec, nil
}
