// Package snapshot builds the immutable set of communities, facilities and
// urban centers an analysis runs against.
package snapshot

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/vivaro/vivaro/internal/geo"
	"github.com/vivaro/vivaro/internal/model"
)

// ErrNoCommunities is returned when no usable community survives loading.
var ErrNoCommunities = eris.New("snapshot: no usable communities")

// Feature is a decoded input record before validation. Geometry uses the
// go-geom types produced by every source decoder.
type Feature struct {
	Name       string
	Properties map[string]any
	Geometry   geom.T
}

// Inputs groups the feature sets a snapshot is built from. UrbanCenters may
// be nil.
type Inputs struct {
	Communities  []Feature
	Schools      []Feature
	Healthcare   []Feature
	UrbanCenters []Feature
}

// Options tunes snapshot construction.
type Options struct {
	// SimplifyTolerance is the Douglas-Peucker tolerance in degrees applied
	// to community boundaries. Zero disables simplification.
	SimplifyTolerance float64
}

// Report summarises what was dropped while building a snapshot.
type Report struct {
	Dropped    []*model.InvalidGeometryError `json:"dropped,omitempty"`
	Duplicates []string                      `json:"duplicates,omitempty"`
	Unnamed    int                           `json:"unnamed"`
}

// Snapshot owns every geometry used by one analysis. It is read-only after
// Build returns.
type Snapshot struct {
	Communities  []model.Community
	Facilities   map[model.FacilityClass][]model.Facility
	UrbanCenters []model.GeoPoint
	Report       Report
	BuiltAt      time.Time

	byName map[string]int
}

// FoldName normalises a community name for lookups.
func FoldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Community returns the community whose name matches case-insensitively.
func (s *Snapshot) Community(name string) (*model.Community, bool) {
	i, ok := s.byName[FoldName(name)]
	if !ok {
		return nil, false
	}
	return &s.Communities[i], true
}

// Points returns the locations of every facility of the class.
func (s *Snapshot) Points(class model.FacilityClass) []model.GeoPoint {
	facilities := s.Facilities[class]
	pts := make([]model.GeoPoint, len(facilities))
	for i, f := range facilities {
		pts[i] = f.Location
	}
	return pts
}

// CommunityLocations returns the locations of every community that has one.
func (s *Snapshot) CommunityLocations() []model.GeoPoint {
	pts := make([]model.GeoPoint, 0, len(s.Communities))
	for i := range s.Communities {
		if loc := s.Communities[i].Location; loc != nil {
			pts = append(pts, *loc)
		}
	}
	return pts
}

// Build validates the inputs and assembles a snapshot. Invalid features are
// dropped with a warning. Build fails only when no community survives.
func Build(in Inputs, opts Options) (*Snapshot, error) {
	b := &builder{
		log:  zap.L().With(zap.String("component", "snapshot")),
		opts: opts,
		snap: &Snapshot{
			Facilities: make(map[model.FacilityClass][]model.Facility, len(model.FacilityClasses)),
			byName:     make(map[string]int, len(in.Communities)),
			BuiltAt:    time.Now().UTC(),
		},
	}

	for _, f := range in.Communities {
		b.addCommunity(f)
	}
	if len(b.snap.Communities) == 0 {
		return nil, ErrNoCommunities
	}

	b.addFacilities(model.ClassSchool, in.Schools)
	b.addFacilities(model.ClassHealthcare, in.Healthcare)
	for _, f := range in.UrbanCenters {
		if p, ok := b.location(f, "urban center"); ok {
			b.snap.UrbanCenters = append(b.snap.UrbanCenters, p)
		}
	}

	r := b.snap.Report
	b.log.Info("snapshot built",
		zap.Int("communities", len(b.snap.Communities)),
		zap.Int("schools", len(b.snap.Facilities[model.ClassSchool])),
		zap.Int("healthcare", len(b.snap.Facilities[model.ClassHealthcare])),
		zap.Int("urban_centers", len(b.snap.UrbanCenters)),
		zap.Int("dropped", len(r.Dropped)),
		zap.Int("duplicates", len(r.Duplicates)),
	)
	return b.snap, nil
}

type builder struct {
	log  *zap.Logger
	opts Options
	snap *Snapshot
}

func (b *builder) drop(set, name, reason string) {
	b.snap.Report.Dropped = append(b.snap.Report.Dropped, &model.InvalidGeometryError{Feature: name, Reason: reason})
	b.log.Warn("dropping feature",
		zap.String("set", set),
		zap.String("name", name),
		zap.String("reason", reason),
	)
}

func (b *builder) addCommunity(f Feature) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		b.snap.Report.Unnamed++
		b.log.Warn("dropping unnamed community")
		return
	}

	key := FoldName(name)
	if _, dup := b.snap.byName[key]; dup {
		b.snap.Report.Duplicates = append(b.snap.Report.Duplicates, name)
		b.log.Warn("dropping duplicate community", zap.String("name", name))
		return
	}

	c := model.Community{Name: name}
	switch g := ToGeometry(f.Geometry).(type) {
	case model.PointGeometry:
		p := g.Point
		c.Location = &p

	case model.PolygonGeometry:
		c.Boundary = geo.Simplify(g.Boundary, b.opts.SimplifyTolerance)
		c.Bound = c.Boundary.Bound()
		c.AreaKM2 = geo.AreaKM2(c.Boundary)
		loc, ok := propertyLocation(f.Properties)
		if !ok {
			loc = geo.Centroid(c.Boundary)
		}
		c.Location = &loc

	case model.InvalidGeometry:
		b.drop("communities", name, g.Reason)
		return
	}

	b.snap.byName[key] = len(b.snap.Communities)
	b.snap.Communities = append(b.snap.Communities, c)
}

func (b *builder) addFacilities(class model.FacilityClass, features []Feature) {
	set := string(class)
	out := make([]model.Facility, 0, len(features))
	for _, f := range features {
		p, ok := b.location(f, set)
		if !ok {
			continue
		}
		out = append(out, model.Facility{Class: class, Name: strings.TrimSpace(f.Name), Location: p})
	}
	b.snap.Facilities[class] = out
}

// location resolves a facility-like feature to a point. Polygon footprints
// collapse to their centroid.
func (b *builder) location(f Feature, set string) (model.GeoPoint, bool) {
	switch g := ToGeometry(f.Geometry).(type) {
	case model.PointGeometry:
		return g.Point, true
	case model.PolygonGeometry:
		return geo.Centroid(g.Boundary), true
	case model.InvalidGeometry:
		b.drop(set, f.Name, g.Reason)
	}
	return model.GeoPoint{}, false
}

// propertyLocation reads an explicit lat/lon pair from feature properties.
func propertyLocation(props map[string]any) (model.GeoPoint, bool) {
	lat, okLat := propFloat(props, "lat", "latitude")
	lon, okLon := propFloat(props, "lon", "lng", "longitude")
	if !okLat || !okLon {
		return model.GeoPoint{}, false
	}
	p := model.Pt(lat, lon)
	return p, p.Valid()
}

func propFloat(props map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := props[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t, true
		case float32:
			return float64(t), true
		case int:
			return float64(t), true
		case int64:
			return float64(t), true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
