//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/wildfire-linker/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, 10*time.Second, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_ReverseGeocode_Napa(t *testing.T) {
	c := smokeClient(t)

	// Origin of the 2020 Glass Fire.
	result, err := c.ReverseGeocode(context.Background(), 38.5618, -122.5122)
	require.NoError(t, err)

	assert.NotEmpty(t, result.FormattedAddress)
	assert.Equal(t, "Napa", result.County)
	assert.Greater(t, result.Confidence, 0.0)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	c := smokeClient(t)
	cached := NewCachedGeocoder(c, 10, DefaultPrecision, observability.NewMetricsForTesting())

	r1, err := cached.ReverseGeocode(context.Background(), 34.0736, -118.4004)
	require.NoError(t, err)

	r2, err := cached.ReverseGeocode(context.Background(), 34.0736, -118.4004)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, cached.Len())
}
