package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/rotisserie/eris"

	"github.com/vivaro/vivaro/internal/model"
)

// Projection names accepted by NewProjector.
const (
	ProjectionLocal    = "local"
	ProjectionMercator = "mercator"
)

const earthRadiusM = EarthRadiusKM * 1000

// Projector maps geographic points to a planar system measured in meters and
// back.
type Projector interface {
	Forward(p model.GeoPoint) (x, y float64)
	Inverse(x, y float64) model.GeoPoint
}

// NewProjector returns the named projection fitted to the given points.
func NewProjector(name string, points []model.GeoPoint) (Projector, error) {
	switch name {
	case "", ProjectionLocal:
		return NewLocalProjector(points), nil
	case ProjectionMercator:
		return MercatorProjector{}, nil
	default:
		return nil, eris.Errorf("geo: unknown projection %q", name)
	}
}

// LocalProjector is an equirectangular projection centered on the mean of a
// point set. Distances near the center are true to scale, which keeps
// clustering unbiased over a regional extent.
type LocalProjector struct {
	Lat0, Lon0 float64
	cosLat0    float64
}

// NewLocalProjector centers a projection on the mean position of points.
func NewLocalProjector(points []model.GeoPoint) *LocalProjector {
	var lat0, lon0 float64
	if len(points) > 0 {
		for _, p := range points {
			lat0 += p.Lat
			lon0 += p.Lon
		}
		lat0 /= float64(len(points))
		lon0 /= float64(len(points))
	}
	return &LocalProjector{Lat0: lat0, Lon0: lon0, cosLat0: math.Cos(Radians(lat0))}
}

// Forward projects p to meters east and north of the projection center.
func (l *LocalProjector) Forward(p model.GeoPoint) (float64, float64) {
	x := earthRadiusM * Radians(p.Lon-l.Lon0) * l.cosLat0
	y := earthRadiusM * Radians(p.Lat-l.Lat0)
	return x, y
}

// Inverse maps planar meters back to a geographic point.
func (l *LocalProjector) Inverse(x, y float64) model.GeoPoint {
	lat := l.Lat0 + Degrees(y/earthRadiusM)
	lon := l.Lon0
	if l.cosLat0 != 0 {
		lon += Degrees(x / (earthRadiusM * l.cosLat0))
	}
	return model.GeoPoint{Lat: lat, Lon: lon}
}

// MercatorProjector is spherical web mercator (EPSG:3857).
type MercatorProjector struct{}

// Forward projects p into web mercator meters.
func (MercatorProjector) Forward(p model.GeoPoint) (float64, float64) {
	m := project.WGS84.ToMercator(p.ToOrb())
	return m[0], m[1]
}

// Inverse maps web mercator meters back to a geographic point.
func (MercatorProjector) Inverse(x, y float64) model.GeoPoint {
	return model.FromOrb(project.Mercator.ToWGS84(orb.Point{x, y}))
}
