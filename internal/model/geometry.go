package model

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Geometry is the validated form of an input geometry. It is one of
// PointGeometry, PolygonGeometry or InvalidGeometry; consumers switch on the
// concrete type and handle every case.
type Geometry interface {
	geometry()
}

// PointGeometry is a single location.
type PointGeometry struct {
	Point GeoPoint
}

// PolygonGeometry is an area boundary. Rings follow GeoJSON order: the first
// ring of each polygon is the shell, the rest are holes. Coordinates are
// orb.Point{lon, lat}.
type PolygonGeometry struct {
	Boundary orb.MultiPolygon
}

// InvalidGeometry marks a geometry that was null, unparseable or of an
// unsupported type.
type InvalidGeometry struct {
	Reason string
}

func (PointGeometry) geometry()   {}
func (PolygonGeometry) geometry() {}
func (InvalidGeometry) geometry() {}

// InvalidGeometryError reports a feature whose geometry could not be used.
type InvalidGeometryError struct {
	Feature string
	Reason  string
}

func (e *InvalidGeometryError) Error() string {
	if e.Feature == "" {
		return fmt.Sprintf("invalid geometry: %s", e.Reason)
	}
	return fmt.Sprintf("invalid geometry for %q: %s", e.Feature, e.Reason)
}

// ToOrb converts a point to orb's lon/lat ordering.
func (p GeoPoint) ToOrb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromOrb converts an orb lon/lat point.
func FromOrb(p orb.Point) GeoPoint {
	return GeoPoint{Lat: p.Lat(), Lon: p.Lon()}
}
