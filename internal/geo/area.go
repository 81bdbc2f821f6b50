package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/vivaro/vivaro/internal/model"
)

// AreaKM2 returns the geodesic area of a lon/lat boundary in square
// kilometers. A nil or degenerate boundary has zero area.
func AreaKM2(mp orb.MultiPolygon) float64 {
	if len(mp) == 0 {
		return 0
	}
	return math.Abs(orbgeo.Area(mp)) / 1e6
}

// Centroid returns the area-weighted centroid of a boundary. It falls back to
// the bounding box center when the boundary has no area.
func Centroid(mp orb.MultiPolygon) model.GeoPoint {
	c, area := planar.CentroidArea(mp)
	if area == 0 {
		c = mp.Bound().Center()
	}
	return model.FromOrb(c)
}

// Simplify reduces boundary vertices with Douglas-Peucker. The tolerance is
// in degrees; zero or negative returns the boundary unchanged. Polygons whose
// shell collapses below four positions are dropped.
func Simplify(mp orb.MultiPolygon, tolerance float64) orb.MultiPolygon {
	if tolerance <= 0 || len(mp) == 0 {
		return mp
	}

	simplified, ok := simplify.DouglasPeucker(tolerance).Simplify(mp.Clone()).(orb.MultiPolygon)
	if !ok {
		return mp
	}

	out := make(orb.MultiPolygon, 0, len(simplified))
	for _, poly := range simplified {
		if len(poly) == 0 || len(poly[0]) < 4 {
			continue
		}
		out = append(out, poly)
	}
	if len(out) == 0 {
		return mp
	}
	return out
}
