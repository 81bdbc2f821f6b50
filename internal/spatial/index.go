// Package spatial holds the immutable point indexes used by the analysis
// pipeline.
package spatial

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/vivaro/vivaro/internal/geo"
	"github.com/vivaro/vivaro/internal/model"
)

// ErrEmptyIndex is returned when an index is built from zero points.
var ErrEmptyIndex = eris.New("spatial: index requires at least one point")

const leafSize = 16

// Index is a ball tree over geographic points using the haversine angle as
// its metric. It is immutable once built and safe for concurrent queries.
type Index struct {
	lat, lon []float64 // radians, permuted into tree order
	nodes    []ballNode
}

// ballNode covers points[start:end]. Every point in range lies within radius
// (radians) of the node center.
type ballNode struct {
	start, end  int
	cLat, cLon  float64
	radius      float64
	left, right int // -1 on leaves
}

// Build constructs an index over points.
func Build(points []model.GeoPoint) (*Index, error) {
	if len(points) == 0 {
		return nil, ErrEmptyIndex
	}

	idx := &Index{
		lat:   make([]float64, len(points)),
		lon:   make([]float64, len(points)),
		nodes: make([]ballNode, 0, 2*len(points)/leafSize+1),
	}
	for i, p := range points {
		idx.lat[i] = geo.Radians(p.Lat)
		idx.lon[i] = geo.Radians(p.Lon)
	}
	idx.build(0, len(points))
	return idx, nil
}

// Len returns the number of indexed points.
func (idx *Index) Len() int {
	return len(idx.lat)
}

// build creates the node for [start, end) and returns its position.
func (idx *Index) build(start, end int) int {
	cLat, cLon := idx.center(start, end)
	var radius float64
	for i := start; i < end; i++ {
		if d := geo.HaversineAngle(cLat, cLon, idx.lat[i], idx.lon[i]); d > radius {
			radius = d
		}
	}

	pos := len(idx.nodes)
	idx.nodes = append(idx.nodes, ballNode{
		start: start, end: end,
		cLat: cLat, cLon: cLon,
		radius: radius,
		left:   -1, right: -1,
	})
	if end-start <= leafSize {
		return pos
	}

	axis := idx.spreadAxis(start, end)
	mid := start + (end-start)/2
	idx.selectNth(start, end-1, mid, axis)

	left := idx.build(start, mid)
	right := idx.build(mid, end)
	idx.nodes[pos].left = left
	idx.nodes[pos].right = right
	return pos
}

// center returns the normalized mean of the unit vectors in range. A
// degenerate mean falls back to the first point.
func (idx *Index) center(start, end int) (float64, float64) {
	var x, y, z float64
	for i := start; i < end; i++ {
		cl := math.Cos(idx.lat[i])
		x += cl * math.Cos(idx.lon[i])
		y += cl * math.Sin(idx.lon[i])
		z += math.Sin(idx.lat[i])
	}
	norm := math.Sqrt(x*x + y*y + z*z)
	if norm < 1e-12 {
		return idx.lat[start], idx.lon[start]
	}
	return math.Asin(z / norm), math.Atan2(y, x)
}

// spreadAxis picks latitude (0) or longitude (1), whichever spans the larger
// ground distance.
func (idx *Index) spreadAxis(start, end int) int {
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for i := start; i < end; i++ {
		minLat = math.Min(minLat, idx.lat[i])
		maxLat = math.Max(maxLat, idx.lat[i])
		minLon = math.Min(minLon, idx.lon[i])
		maxLon = math.Max(maxLon, idx.lon[i])
	}
	lonSpread := (maxLon - minLon) * math.Cos((minLat+maxLat)/2)
	if lonSpread > maxLat-minLat {
		return 1
	}
	return 0
}

func (idx *Index) key(i, axis int) float64 {
	if axis == 0 {
		return idx.lat[i]
	}
	return idx.lon[i]
}

func (idx *Index) swap(i, j int) {
	idx.lat[i], idx.lat[j] = idx.lat[j], idx.lat[i]
	idx.lon[i], idx.lon[j] = idx.lon[j], idx.lon[i]
}

// selectNth partially orders [lo, hi] so position n holds the element that
// would be there after sorting on axis.
func (idx *Index) selectNth(lo, hi, n, axis int) {
	for lo < hi {
		p := idx.partition(lo, hi, lo+(hi-lo)/2, axis)
		switch {
		case p == n:
			return
		case n < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
}

func (idx *Index) partition(lo, hi, pivot, axis int) int {
	pv := idx.key(pivot, axis)
	idx.swap(pivot, hi)
	store := lo
	for i := lo; i < hi; i++ {
		if idx.key(i, axis) < pv {
			idx.swap(i, store)
			store++
		}
	}
	idx.swap(store, hi)
	return store
}

// Nearest returns the great-circle distance in kilometers from q to the
// closest indexed point.
func (idx *Index) Nearest(q model.GeoPoint) float64 {
	qLat, qLon := geo.Radians(q.Lat), geo.Radians(q.Lon)
	best := math.Inf(1)
	idx.nearest(0, qLat, qLon, &best)
	return best * geo.EarthRadiusKM
}

func (idx *Index) nearest(pos int, qLat, qLon float64, best *float64) {
	n := &idx.nodes[pos]
	if lowerBound(n, qLat, qLon) >= *best {
		return
	}

	if n.left < 0 {
		for i := n.start; i < n.end; i++ {
			if d := geo.HaversineAngle(qLat, qLon, idx.lat[i], idx.lon[i]); d < *best {
				*best = d
			}
		}
		return
	}

	first, second := n.left, n.right
	if lowerBound(&idx.nodes[second], qLat, qLon) < lowerBound(&idx.nodes[first], qLat, qLon) {
		first, second = second, first
	}
	idx.nearest(first, qLat, qLon, best)
	idx.nearest(second, qLat, qLon, best)
}

// lowerBound is the smallest angle from q to any point the node may hold.
func lowerBound(n *ballNode, qLat, qLon float64) float64 {
	d := geo.HaversineAngle(qLat, qLon, n.cLat, n.cLon) - n.radius
	if d < 0 {
		return 0
	}
	return d
}

// CountWithin returns how many indexed points lie within radiusKM of q,
// inclusive.
func (idx *Index) CountWithin(q model.GeoPoint, radiusKM float64) int {
	if radiusKM < 0 {
		return 0
	}
	r := radiusKM / geo.EarthRadiusKM
	return idx.countWithin(0, geo.Radians(q.Lat), geo.Radians(q.Lon), r)
}

func (idx *Index) countWithin(pos int, qLat, qLon, r float64) int {
	n := &idx.nodes[pos]
	d := geo.HaversineAngle(qLat, qLon, n.cLat, n.cLon)
	if d-n.radius > r {
		return 0
	}
	if d+n.radius <= r {
		return n.end - n.start
	}
	if n.left < 0 {
		var count int
		for i := n.start; i < n.end; i++ {
			if geo.HaversineAngle(qLat, qLon, idx.lat[i], idx.lon[i]) <= r {
				count++
			}
		}
		return count
	}
	return idx.countWithin(n.left, qLat, qLon, r) + idx.countWithin(n.right, qLat, qLon, r)
}
