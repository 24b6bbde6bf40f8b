// Package spatial prunes the target set to nearby candidates so matching never
// degrades to the full source × target cross product.
//
// Both indexes are built once by a single writer and are read-only while
// matching runs; concurrent Query calls are safe after Build returns.
package spatial

import (
	"fmt"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/geo"
)

// DefaultCellSize is roughly one kilometre of latitude.
const DefaultCellSize = 0.01

// Index returns candidate target ids near a point.
type Index interface {
	// Build replaces the index contents. Targets without a valid
	// representative point are dropped and reported as warnings.
	Build(targets []domain.TargetEntity) []domain.Warning
	// Query returns the sorted ids of targets within radiusCells cells of p.
	// It fails with domain.ErrIndexUnbuilt before Build.
	Query(p geo.LatLng, radiusCells int) ([]string, error)
	// Len is the number of indexed targets.
	Len() int
}

// Kind selects an Index implementation.
type Kind string

const (
	KindGrid  Kind = "grid"
	KindRTree Kind = "rtree"
)

// New builds an empty index of the given kind.
func New(kind Kind, cellSize float64) (Index, error) {
	switch kind {
	case KindGrid, "":
		return NewGrid(cellSize)
	case KindRTree:
		return NewRTree(cellSize)
	default:
		return nil, fmt.Errorf("%w: unknown index kind %q", domain.ErrInvalidConfig, kind)
	}
}

func checkCellSize(cellSize float64) error {
	if !(cellSize > 0) {
		return fmt.Errorf("%w: cell size must be positive, got %v", domain.ErrInvalidConfig, cellSize)
	}
	return nil
}

func dropWarning(id string) domain.Warning {
	return domain.Warning{
		EntityID: id,
		Err:      fmt.Errorf("%w: no valid representative point", domain.ErrGeometryInvalid),
	}
}
