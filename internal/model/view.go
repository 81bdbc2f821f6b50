package model

import "math"

// UnderservedView is the published shape of an UnderservedRecord.
type UnderservedView struct {
	Name              string     `json:"name" yaml:"name"`
	Coords            [2]float64 `json:"coords" yaml:"coords"`
	SchoolDist        float64    `json:"school_dist" yaml:"school_dist"`
	HealthcareDist    float64    `json:"healthcare_dist" yaml:"healthcare_dist"`
	SchoolDensity     float64    `json:"school_density" yaml:"school_density"`
	HealthcareDensity float64    `json:"healthcare_density" yaml:"healthcare_density"`
	AreaKM2           float64    `json:"city_area_km2" yaml:"city_area_km2"`
	Underserved       bool       `json:"underserved" yaml:"underserved"`
}

// RecommendationView is the published shape of a Recommendation.
type RecommendationView struct {
	Name                string                `json:"name" yaml:"name"`
	Coords              [2]float64            `json:"coords" yaml:"coords"`
	RecommendedFacility map[string][2]float64 `json:"recommended_facility" yaml:"recommended_facility"`
	Justification       string                `json:"justification" yaml:"justification"`
}

// View converts a record to its published shape. Distances are rounded to
// two decimals and densities to three.
func (r UnderservedRecord) View() UnderservedView {
	v := UnderservedView{Underserved: r.Underserved}
	if r.Community != nil {
		v.Name = r.Community.Name
		v.AreaKM2 = Round(r.Community.AreaKM2, 2)
		if r.Community.Location != nil {
			v.Coords = r.Community.Location.Coords()
		}
	}
	if m, ok := r.Metrics[ClassSchool]; ok {
		v.SchoolDist = Round(m.NearestDistanceKM, 2)
		v.SchoolDensity = Round(m.DensityPerKM2, 3)
	}
	if m, ok := r.Metrics[ClassHealthcare]; ok {
		v.HealthcareDist = Round(m.NearestDistanceKM, 2)
		v.HealthcareDensity = Round(m.DensityPerKM2, 3)
	}
	return v
}

// View converts a recommendation to its published shape.
func (r Recommendation) View() RecommendationView {
	v := RecommendationView{
		RecommendedFacility: make(map[string][2]float64, len(r.Sites)),
		Justification:       r.Justification,
	}
	if r.Community != nil {
		v.Name = r.Community.Name
		if r.Community.Location != nil {
			v.Coords = r.Community.Location.Coords()
		}
	}
	for class, site := range r.Sites {
		v.RecommendedFacility[class.MarkerKey()] = site.Coords()
	}
	return v
}

// UnderservedViews converts records to their published shapes.
func UnderservedViews(records []UnderservedRecord) []UnderservedView {
	out := make([]UnderservedView, 0, len(records))
	for _, r := range records {
		out = append(out, r.View())
	}
	return out
}

// RecommendationViews converts recommendations to their published shapes.
func RecommendationViews(recs []Recommendation) []RecommendationView {
	out := make([]RecommendationView, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.View())
	}
	return out
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
