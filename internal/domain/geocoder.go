package domain

import "context"

// GeocodingResult contains place data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lng              float64
	FormattedAddress string
	PlaceName        string
	County           string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves coordinates to place details. It belongs to the
// enrichment layer; the matcher never calls it.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (GeocodingResult, error)
}
