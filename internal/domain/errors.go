package domain

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/wildfire-linker/internal/geo"
)

var (
	// ErrGeometryInvalid marks malformed or empty geometry. The owning entity
	// is skipped with a Warning; the run continues.
	ErrGeometryInvalid = geo.ErrInvalidGeometry

	// ErrIndexUnbuilt is returned when candidates are requested before the
	// spatial index has been built.
	ErrIndexUnbuilt = errors.New("spatial index not built")

	// ErrInvalidConfig marks a configuration the engine cannot run with.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMalformedData marks a data bag that could not be interpreted. The
	// source is kept with empty Attributes and the bag in Attributes.Extra.
	ErrMalformedData = errors.New("malformed data bag")
)

// Warning records a recoverable per-entity problem.
type Warning struct {
	EntityID string
	Err      error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.EntityID, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }
