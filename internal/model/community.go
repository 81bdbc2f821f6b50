package model

import "github.com/paulmach/orb"

// Community is a population center. Communities are built once per snapshot
// and never mutated afterwards.
type Community struct {
	Name string `json:"name"`
	// Location is nil when the source carried no usable position.
	Location *GeoPoint `json:"location,omitempty"`
	// Boundary is nil for point-only communities.
	Boundary orb.MultiPolygon `json:"-"`
	// Bound is the lon/lat bounding box of Boundary.
	Bound   orb.Bound `json:"-"`
	AreaKM2 float64   `json:"area_km2"`
}

// HasBoundary reports whether the community carries a polygon boundary.
func (c *Community) HasBoundary() bool {
	return len(c.Boundary) > 0
}

// Facility is a single school or healthcare site.
type Facility struct {
	Class    FacilityClass `json:"class"`
	Name     string        `json:"name,omitempty"`
	Location GeoPoint      `json:"location"`
}
