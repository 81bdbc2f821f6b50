package model

import "time"

// ServiceMetrics describes how well one community is served by one facility
// class.
type ServiceMetrics struct {
	NearestDistanceKM float64 `json:"nearest_distance_km"`
	// FacilityCount is only meaningful when HasBoundary is true.
	FacilityCount int     `json:"facility_count"`
	DensityPerKM2 float64 `json:"density_per_km2"`
	HasBoundary   bool    `json:"has_boundary"`
	// Need is set when the class fails both the density and distance rules.
	Need bool `json:"need"`
}

// UnderservedRecord is the classifier verdict for a single community.
type UnderservedRecord struct {
	Community   *Community                       `json:"community"`
	Metrics     map[FacilityClass]ServiceMetrics `json:"metrics"`
	Underserved bool                             `json:"underserved"`
}

// Needs returns the facility classes the community lacks, in evaluation order.
func (r UnderservedRecord) Needs() []FacilityClass {
	var out []FacilityClass
	for _, c := range FacilityClasses {
		if m, ok := r.Metrics[c]; ok && m.Need {
			out = append(out, c)
		}
	}
	return out
}

// Cluster is a group of underserved communities sharing one candidate site.
type Cluster struct {
	ID       int      `json:"id"`
	Members  []string `json:"members"`
	Centroid GeoPoint `json:"centroid"`
	// ProjectedX and ProjectedY hold the centroid in the planar projection
	// used for clustering, in meters.
	ProjectedX float64 `json:"projected_x"`
	ProjectedY float64 `json:"projected_y"`
}

// Clustering assigns every clustered community to exactly one cluster.
type Clustering struct {
	Clusters []Cluster `json:"clusters"`
	byName   map[string]int
}

// NewClustering indexes clusters by member name.
func NewClustering(clusters []Cluster) *Clustering {
	c := &Clustering{Clusters: clusters, byName: make(map[string]int)}
	for i, cl := range clusters {
		for _, m := range cl.Members {
			c.byName[m] = i
		}
	}
	return c
}

// For returns the cluster that holds the named community.
func (c *Clustering) For(name string) (Cluster, bool) {
	if c == nil {
		return Cluster{}, false
	}
	i, ok := c.byName[name]
	if !ok {
		return Cluster{}, false
	}
	return c.Clusters[i], true
}

// Len returns the number of clusters.
func (c *Clustering) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Clusters)
}

// Recommendation proposes new facility sites for one community.
type Recommendation struct {
	Community     *Community                 `json:"community"`
	Sites         map[FacilityClass]GeoPoint `json:"sites"`
	ClusterID     int                        `json:"cluster_id"`
	Justification string                     `json:"justification"`
}

// Result is the full output of one analysis run.
type Result struct {
	RunID           string              `json:"run_id"`
	StartedAt       time.Time           `json:"started_at"`
	Duration        time.Duration       `json:"duration"`
	Records         []UnderservedRecord `json:"records"`
	Clustering      *Clustering         `json:"clustering"`
	Recommendations []Recommendation    `json:"recommendations"`
}

// Underserved returns the records flagged as underserved, in input order.
func (r *Result) Underserved() []UnderservedRecord {
	var out []UnderservedRecord
	for _, rec := range r.Records {
		if rec.Underserved {
			out = append(out, rec)
		}
	}
	return out
}
