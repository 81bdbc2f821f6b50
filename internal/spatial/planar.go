package spatial

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/rotisserie/eris"
)

const (
	rtreeMinChildren = 25
	rtreeMaxChildren = 50
	pointTolerance   = 1e-9
)

// planarItem is a point entry in a PlanarIndex.
type planarItem struct {
	id   int
	x, y float64
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (p *planarItem) Bounds() rtreego.Rect {
	return p.rect
}

// PlanarIndex is an R-tree over points in a planar coordinate system. It
// serves box lookups (lon/lat degrees for point-in-boundary candidates) and
// Euclidean radius lookups (projected meters for density clustering).
type PlanarIndex struct {
	tree  *rtreego.Rtree
	items []*planarItem
}

// NewPlanarIndex indexes the points (xs[i], ys[i]). The id of each point is
// its position in the input.
func NewPlanarIndex(xs, ys []float64) (*PlanarIndex, error) {
	if len(xs) != len(ys) {
		return nil, eris.Errorf("spatial: coordinate length mismatch (%d x, %d y)", len(xs), len(ys))
	}

	items := make([]*planarItem, len(xs))
	objs := make([]rtreego.Spatial, len(xs))
	for i := range xs {
		item := &planarItem{
			id:   i,
			x:    xs[i],
			y:    ys[i],
			rect: rtreego.Point{xs[i], ys[i]}.ToRect(pointTolerance),
		}
		items[i] = item
		objs[i] = item
	}

	return &PlanarIndex{
		tree:  rtreego.NewTree(2, rtreeMinChildren, rtreeMaxChildren, objs...),
		items: items,
	}, nil
}

// Len returns the number of indexed points.
func (p *PlanarIndex) Len() int {
	return len(p.items)
}

// InBox returns the ids of points inside the closed box, ascending.
func (p *PlanarIndex) InBox(minX, minY, maxX, maxY float64) []int {
	if len(p.items) == 0 || minX > maxX || minY > maxY {
		return nil
	}

	rect, err := rtreego.NewRect(
		rtreego.Point{minX - pointTolerance, minY - pointTolerance},
		[]float64{maxX - minX + 2*pointTolerance, maxY - minY + 2*pointTolerance},
	)
	if err != nil {
		return nil
	}

	var ids []int
	for _, s := range p.tree.SearchIntersect(rect) {
		item := s.(*planarItem)
		if item.x >= minX && item.x <= maxX && item.y >= minY && item.y <= maxY {
			ids = append(ids, item.id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Within returns the ids of points whose Euclidean distance from (x, y) is
// at most r, ascending.
func (p *PlanarIndex) Within(x, y, r float64) []int {
	if r < 0 {
		return nil
	}

	candidates := p.InBox(x-r, y-r, x+r, y+r)
	ids := candidates[:0]
	for _, id := range candidates {
		dx := p.items[id].x - x
		dy := p.items[id].y - y
		if dx*dx+dy*dy <= r*r {
			ids = append(ids, id)
		}
	}
	return ids
}
