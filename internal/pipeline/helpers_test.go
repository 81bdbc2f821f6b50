package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/vivaro/vivaro/internal/config"
	"github.com/vivaro/vivaro/internal/model"
	"github.com/vivaro/vivaro/internal/snapshot"
)

func testConfig() *config.Config {
	return &config.Config{
		Analysis: config.AnalysisConfig{
			SchoolDensityThreshold:     0.1,
			HealthcareDensityThreshold: 0.05,
			DistanceThresholdKM:        10,
			Workers:                    4,
			ProbeRadiusKM:              10,
		},
		Cluster: config.ClusterConfig{
			Method:        MethodKMeans,
			K:             10,
			Seed:          42,
			MaxIterations: 300,
			Projection:    "local",
			EpsKM:         20,
			MinSamples:    3,
		},
		Recommend: config.RecommendConfig{
			BufferKM:        15,
			MarkerOffsetDeg: 0.01,
			Gating:          GatingNeed,
			Justification:   true,
		},
	}
}

func pointFeature(name string, lat, lon float64) snapshot.Feature {
	return snapshot.Feature{Name: name, Geometry: geom.NewPointFlat(geom.XY, []float64{lon, lat})}
}

func boxFeature(name string, minLon, minLat, maxLon, maxLat float64) snapshot.Feature {
	return snapshot.Feature{Name: name, Geometry: geom.NewPolygonFlat(geom.XY, []float64{
		minLon, minLat, maxLon, minLat, maxLon, maxLat, minLon, maxLat, minLon, minLat,
	}, []int{10})}
}

func newTestContext(t *testing.T, in snapshot.Inputs, cfg *config.Config) *AnalysisContext {
	t.Helper()
	snap, err := snapshot.Build(in, snapshot.Options{})
	require.NoError(t, err)
	ac, err := NewContext(snap, cfg)
	require.NoError(t, err)
	return ac
}

func locatedRecord(name string, lat, lon float64) model.UnderservedRecord {
	loc := model.Pt(lat, lon)
	return model.UnderservedRecord{
		Community: &model.Community{Name: name, Location: &loc},
		Metrics: map[model.FacilityClass]model.ServiceMetrics{
			model.ClassSchool:     {NearestDistanceKM: 20, HasBoundary: true, Need: true},
			model.ClassHealthcare: {NearestDistanceKM: 20, HasBoundary: true, Need: true},
		},
		Underserved: true,
	}
}
