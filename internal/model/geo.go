package model

import "fmt"

// GeoPoint is a WGS84 coordinate in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Pt is a shorthand constructor for GeoPoint.
func Pt(lat, lon float64) GeoPoint {
	return GeoPoint{Lat: lat, Lon: lon}
}

// Valid reports whether the point lies inside the WGS84 coordinate range.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Coords returns the point as the [lat, lon] pair used by the output shapes.
func (p GeoPoint) Coords() [2]float64 {
	return [2]float64{p.Lat, p.Lon}
}

// Offset returns the point shifted by the given number of degrees.
func (p GeoPoint) Offset(dLat, dLon float64) GeoPoint {
	return GeoPoint{Lat: p.Lat + dLat, Lon: p.Lon + dLon}
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("[%.6f, %.6f]", p.Lat, p.Lon)
}

// FacilityClass identifies a kind of public facility.
type FacilityClass string

const (
	ClassSchool     FacilityClass = "school"
	ClassHealthcare FacilityClass = "healthcare"
)

// FacilityClasses lists every class in evaluation order.
var FacilityClasses = []FacilityClass{ClassSchool, ClassHealthcare}

// Valid reports whether c is a known facility class.
func (c FacilityClass) Valid() bool {
	switch c {
	case ClassSchool, ClassHealthcare:
		return true
	}
	return false
}

// MarkerKey returns the key used for the class in recommendation output.
// Healthcare sites are published as "clinic".
func (c FacilityClass) MarkerKey() string {
	if c == ClassHealthcare {
		return "clinic"
	}
	return string(c)
}
