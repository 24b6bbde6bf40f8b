package domain

import (
	"context"
	"log/slog"
)

// EnrichWithPlace fills PlaceName and a missing County from reverse
// geocoding. A nil geocoder or a failed lookup leaves the source unchanged.
func EnrichWithPlace(ctx context.Context, src SourceEntity, geocoder Geocoder, logger *slog.Logger) SourceEntity {
	if geocoder == nil || !src.Location.Valid() {
		return src
	}

	result, err := geocoder.ReverseGeocode(ctx, src.Location.Lat, src.Location.Lng)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"source_id", src.ID,
			"lat", src.Location.Lat,
			"lng", src.Location.Lng,
			"error", err,
		)
		return src
	}
	if result.FormattedAddress == "" {
		return src
	}

	src.Attributes.PlaceName = result.FormattedAddress
	if src.Attributes.County == "" {
		src.Attributes.County = result.County
	}
	return src
}
