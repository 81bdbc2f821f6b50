package pipeline

import (
	"math"

	"github.com/vivaro/vivaro/internal/geo"
	"github.com/vivaro/vivaro/internal/model"
)

// ProbeResult holds facility access metrics for an arbitrary coordinate.
// UrbanDistanceKM is -1 when no urban center is indexed.
type ProbeResult struct {
	Point           model.GeoPoint                               `json:"point"`
	RadiusKM        float64                                      `json:"radius_km"`
	Metrics         map[model.FacilityClass]model.ServiceMetrics `json:"metrics"`
	Underserved     bool                                         `json:"underserved"`
	UrbanDistanceKM float64                                      `json:"urban_distance_km"`
	Remoteness      string                                       `json:"remoteness,omitempty"`
}

// ProbeView is the published shape of a ProbeResult.
type ProbeView struct {
	Lat               float64 `json:"lat" yaml:"lat"`
	Lon               float64 `json:"lon" yaml:"lon"`
	RadiusKM          float64 `json:"radius_km" yaml:"radius_km"`
	SchoolDist        float64 `json:"school_dist" yaml:"school_dist"`
	HealthcareDist    float64 `json:"healthcare_dist" yaml:"healthcare_dist"`
	SchoolCount       int     `json:"school_count" yaml:"school_count"`
	HealthcareCount   int     `json:"healthcare_count" yaml:"healthcare_count"`
	SchoolDensity     float64 `json:"school_density" yaml:"school_density"`
	HealthcareDensity float64 `json:"healthcare_density" yaml:"healthcare_density"`
	Underserved       bool    `json:"underserved" yaml:"underserved"`
	UrbanDistanceKM   float64 `json:"urban_distance_km" yaml:"urban_distance_km"`
	Remoteness        string  `json:"remoteness,omitempty" yaml:"remoteness,omitempty"`
}

// View converts the probe to its published shape.
func (p ProbeResult) View() ProbeView {
	s := p.Metrics[model.ClassSchool]
	h := p.Metrics[model.ClassHealthcare]
	return ProbeView{
		Lat:               p.Point.Lat,
		Lon:               p.Point.Lon,
		RadiusKM:          p.RadiusKM,
		SchoolDist:        model.Round(s.NearestDistanceKM, 2),
		HealthcareDist:    model.Round(h.NearestDistanceKM, 2),
		SchoolCount:       s.FacilityCount,
		HealthcareCount:   h.FacilityCount,
		SchoolDensity:     model.Round(s.DensityPerKM2, 3),
		HealthcareDensity: model.Round(h.DensityPerKM2, 3),
		Underserved:       p.Underserved,
		UrbanDistanceKM:   model.Round(p.UrbanDistanceKM, 2),
		Remoteness:        p.Remoteness,
	}
}

// Probe measures facility access around a coordinate. Facilities are counted
// within the configured great-circle radius and density is taken over the
// disc area.
func Probe(ac *AnalysisContext, p model.GeoPoint) (ProbeResult, error) {
	if !p.Valid() || math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return ProbeResult{}, &model.InvalidGeometryError{Reason: "coordinate " + p.String() + " out of range"}
	}

	radius := ac.Config.Analysis.ProbeRadiusKM
	area := math.Pi * radius * radius

	res := ProbeResult{
		Point:    p,
		RadiusKM: radius,
		Metrics:  make(map[model.FacilityClass]model.ServiceMetrics, len(model.FacilityClasses)),
	}
	for _, class := range model.FacilityClasses {
		idx, err := ac.index(class)
		if err != nil {
			return ProbeResult{}, err
		}

		m := model.ServiceMetrics{
			NearestDistanceKM: idx.Nearest(p),
			FacilityCount:     idx.CountWithin(p, radius),
		}
		if area > 0 {
			m.DensityPerKM2 = float64(m.FacilityCount) / area
		}
		m.Need = m.DensityPerKM2 < ac.densityThreshold(class) &&
			m.NearestDistanceKM > ac.Config.Analysis.DistanceThresholdKM

		res.Metrics[class] = m
		res.Underserved = res.Underserved || m.Need
	}
	res.UrbanDistanceKM, res.Remoteness = ac.remoteness(p)
	return res, nil
}

// remoteness measures p against the urban center index. Without an index
// the distance is -1 and the class is empty.
func (ac *AnalysisContext) remoteness(p model.GeoPoint) (float64, string) {
	if ac.Urban == nil {
		return -1, ""
	}
	d := ac.Urban.Nearest(p)
	return d, geo.Remoteness(d, ac.Config.Recommend.BufferKM)
}

// LookupResult is the full classification of one named community.
type LookupResult struct {
	Record          model.UnderservedRecord
	UrbanDistanceKM float64
	Remoteness      string
}

// LookupView is the published shape of a LookupResult.
type LookupView struct {
	model.UnderservedView `yaml:",inline"`
	SchoolCount           int     `json:"school_count" yaml:"school_count"`
	HealthcareCount       int     `json:"healthcare_count" yaml:"healthcare_count"`
	HasBoundary           bool    `json:"has_boundary" yaml:"has_boundary"`
	UrbanDistanceKM       float64 `json:"urban_distance_km" yaml:"urban_distance_km"`
	Remoteness            string  `json:"remoteness,omitempty" yaml:"remoteness,omitempty"`
}

// View converts the lookup to its published shape.
func (l LookupResult) View() LookupView {
	c := l.Record.Community
	return LookupView{
		UnderservedView: l.Record.View(),
		SchoolCount:     l.Record.Metrics[model.ClassSchool].FacilityCount,
		HealthcareCount: l.Record.Metrics[model.ClassHealthcare].FacilityCount,
		HasBoundary:     c != nil && c.HasBoundary(),
		UrbanDistanceKM: model.Round(l.UrbanDistanceKM, 2),
		Remoteness:      l.Remoteness,
	}
}

// Lookup finds a community by name, ignoring case, and classifies it. An
// unknown name returns ok == false and no error.
func Lookup(ac *AnalysisContext, name string) (LookupResult, bool, error) {
	c, ok := ac.Snapshot.Community(name)
	if !ok {
		return LookupResult{}, false, nil
	}
	rec, err := Evaluate(ac, c)
	if err != nil {
		return LookupResult{}, true, err
	}
	res := LookupResult{Record: rec}
	res.UrbanDistanceKM, res.Remoteness = ac.remoteness(*c.Location)
	return res, true, nil
}
