package spatial

import (
	"math"
	"slices"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/geo"
)

// CellKey is a quantized (lat, lng) pair.
type CellKey struct {
	Row, Col int
}

// Grid buckets targets by the cell containing their representative point.
type Grid struct {
	cellSize float64
	cells    map[CellKey][]string
	size     int
	built    bool
}

// NewGrid returns an unbuilt grid. cellSize is in degrees and must be positive.
func NewGrid(cellSize float64) (*Grid, error) {
	if err := checkCellSize(cellSize); err != nil {
		return nil, err
	}
	return &Grid{cellSize: cellSize}, nil
}

// Key returns the cell containing p.
func (g *Grid) Key(p geo.LatLng) CellKey {
	return CellKey{
		Row: int(math.Floor(p.Lat / g.cellSize)),
		Col: int(math.Floor(p.Lng / g.cellSize)),
	}
}

func (g *Grid) Build(targets []domain.TargetEntity) []domain.Warning {
	g.cells = make(map[CellKey][]string, len(targets))
	g.size = 0

	var warnings []domain.Warning
	for _, t := range targets {
		p, ok := t.Representative()
		if !ok {
			warnings = append(warnings, dropWarning(t.ID))
			continue
		}
		k := g.Key(p)
		g.cells[k] = append(g.cells[k], t.ID)
		g.size++
	}
	g.built = true
	return warnings
}

func (g *Grid) Query(p geo.LatLng, radiusCells int) ([]string, error) {
	if !g.built {
		return nil, domain.ErrIndexUnbuilt
	}
	radiusCells = max(radiusCells, 0)

	center := g.Key(p)
	var out []string
	for dr := -radiusCells; dr <= radiusCells; dr++ {
		for dc := -radiusCells; dc <= radiusCells; dc++ {
			out = append(out, g.cells[CellKey{center.Row + dr, center.Col + dc}]...)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (g *Grid) Len() int { return g.size }

// Cells is the number of occupied cells.
func (g *Grid) Cells() int { return len(g.cells) }
