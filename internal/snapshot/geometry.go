package snapshot

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-geom"

	"github.com/vivaro/vivaro/internal/model"
)

// ToGeometry converts a decoded go-geom geometry into the validated variant.
// Anything that cannot serve as a point or an area boundary becomes an
// InvalidGeometry carrying the reason.
func ToGeometry(g geom.T) model.Geometry {
	if g == nil {
		return model.InvalidGeometry{Reason: "null geometry"}
	}
	if len(g.FlatCoords()) == 0 {
		return model.InvalidGeometry{Reason: "empty geometry"}
	}

	switch t := g.(type) {
	case *geom.Point:
		return pointGeometry(t.X(), t.Y())

	case *geom.MultiPoint:
		if t.NumPoints() != 1 {
			return model.InvalidGeometry{Reason: fmt.Sprintf("multipoint with %d points", t.NumPoints())}
		}
		p := t.Point(0)
		return pointGeometry(p.X(), p.Y())

	case *geom.Polygon:
		poly, reason := convertPolygon(t)
		if reason != "" {
			return model.InvalidGeometry{Reason: reason}
		}
		return model.PolygonGeometry{Boundary: orb.MultiPolygon{poly}}

	case *geom.MultiPolygon:
		mp := make(orb.MultiPolygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			poly, reason := convertPolygon(t.Polygon(i))
			if reason != "" {
				return model.InvalidGeometry{Reason: fmt.Sprintf("polygon %d: %s", i, reason)}
			}
			mp = append(mp, poly)
		}
		return model.PolygonGeometry{Boundary: mp}

	default:
		return model.InvalidGeometry{Reason: fmt.Sprintf("unsupported geometry type %T", g)}
	}
}

func pointGeometry(lon, lat float64) model.Geometry {
	p := model.Pt(lat, lon)
	if !finite(lat) || !finite(lon) || !p.Valid() {
		return model.InvalidGeometry{Reason: fmt.Sprintf("coordinate %s out of range", p)}
	}
	return model.PointGeometry{Point: p}
}

func convertPolygon(p *geom.Polygon) (orb.Polygon, string) {
	if p.NumLinearRings() == 0 {
		return nil, "polygon has no rings"
	}

	poly := make(orb.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		coords := p.LinearRing(i).Coords()
		if len(coords) < 4 {
			return nil, fmt.Sprintf("ring %d has %d positions", i, len(coords))
		}

		ring := make(orb.Ring, 0, len(coords))
		for _, c := range coords {
			pt := model.Pt(c.Y(), c.X())
			if !finite(pt.Lat) || !finite(pt.Lon) || !pt.Valid() {
				return nil, fmt.Sprintf("coordinate %s out of range", pt)
			}
			ring = append(ring, pt.ToOrb())
		}
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		poly = append(poly, ring)
	}
	return poly, ""
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
