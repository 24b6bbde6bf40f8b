package spatial

import (
	"math"
	"slices"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/geo"
	"github.com/dhconnelly/rtreego"
)

// minExtent keeps degenerate (point) rectangles valid for rtreego.
const minExtent = 1e-9

// RTree indexes target bounding boxes, so a large polygon is found from any
// point near its edge rather than only near its centroid.
type RTree struct {
	cellSize float64
	tree     *rtreego.Rtree
	size     int
	built    bool
}

// NewRTree returns an unbuilt R-tree. cellSize converts query radii from
// cells to degrees, matching Grid semantics.
func NewRTree(cellSize float64) (*RTree, error) {
	if err := checkCellSize(cellSize); err != nil {
		return nil, err
	}
	return &RTree{cellSize: cellSize}, nil
}

type rtreeEntry struct {
	id   string
	rect *rtreego.Rect
}

func (e *rtreeEntry) Bounds() *rtreego.Rect { return e.rect }

func (r *RTree) Build(targets []domain.TargetEntity) []domain.Warning {
	r.tree = rtreego.NewTree(2, 25, 50)
	r.size = 0

	var warnings []domain.Warning
	for _, t := range targets {
		rect, ok := targetRect(t)
		if !ok {
			warnings = append(warnings, dropWarning(t.ID))
			continue
		}
		r.tree.Insert(&rtreeEntry{id: t.ID, rect: rect})
		r.size++
	}
	r.built = true
	return warnings
}

func (r *RTree) Query(p geo.LatLng, radiusCells int) ([]string, error) {
	if !r.built {
		return nil, domain.ErrIndexUnbuilt
	}
	half := math.Max(float64(radiusCells), 0.5) * r.cellSize

	bb := rtreego.Point{p.Lng, p.Lat}.ToRect(half)
	hits := r.tree.SearchIntersect(bb)

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*rtreeEntry).id)
	}
	slices.Sort(out)
	return out, nil
}

func (r *RTree) Len() int { return r.size }

// targetRect is the polygon bound when a polygon exists, otherwise a tiny box
// around the point location.
func targetRect(t domain.TargetEntity) (*rtreego.Rect, bool) {
	if _, ok := t.Representative(); !ok {
		return nil, false
	}
	if len(t.Polygon) > 0 {
		b := t.Polygon.Bound()
		lengths := []float64{
			math.Max(b.Max[0]-b.Min[0], minExtent),
			math.Max(b.Max[1]-b.Min[1], minExtent),
		}
		rect, err := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, lengths)
		return rect, err == nil
	}
	return rtreego.Point{t.Location.Lng, t.Location.Lat}.ToRect(minExtent), true
}
