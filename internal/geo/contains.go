package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/vivaro/vivaro/internal/model"
)

// Contains reports whether p falls inside the boundary. Holes are honored.
// The bounding box is checked first so most misses never reach the ray test.
func Contains(mp orb.MultiPolygon, bound orb.Bound, p model.GeoPoint) bool {
	if len(mp) == 0 {
		return false
	}
	op := p.ToOrb()
	if !bound.Contains(op) {
		return false
	}
	return planar.MultiPolygonContains(mp, op)
}
