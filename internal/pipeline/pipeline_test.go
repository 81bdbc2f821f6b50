package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivaro/vivaro/internal/config"
	"github.com/vivaro/vivaro/internal/model"
	"github.com/vivaro/vivaro/internal/snapshot"
)

func regionInputs() snapshot.Inputs {
	in := snapshot.Inputs{
		Communities: []snapshot.Feature{
			boxFeature("Served City", 28.0, -26.2, 28.2, -26.0),
			pointFeature("Far East", -26.1, 29.5),
			pointFeature("Far North", -24.6, 28.1),
			pointFeature("Near Edge", -26.15, 28.15),
		},
		Healthcare: []snapshot.Feature{pointFeature("Hospital", -26.1, 28.1)},
	}
	for i := range 30 {
		in.Schools = append(in.Schools, pointFeature("school", -26.19+float64(i%6)*0.03, 28.01+float64(i/6)*0.03))
	}
	return in
}

func TestRun(t *testing.T) {
	t.Parallel()

	ac := newTestContext(t, regionInputs(), testConfig())

	res, err := Run(context.Background(), ac)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Records, 4)

	byName := make(map[string]model.UnderservedRecord)
	for _, r := range res.Records {
		byName[r.Community.Name] = r
	}
	assert.False(t, byName["Served City"].Underserved)
	assert.False(t, byName["Near Edge"].Underserved)
	assert.True(t, byName["Far East"].Underserved)
	assert.True(t, byName["Far North"].Underserved)

	underserved := res.Underserved()
	require.Len(t, underserved, 2)
	assert.Equal(t, 2, res.Clustering.Len())
	_, ok := res.Clustering.For("Served City")
	assert.False(t, ok)

	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, "Far East", res.Recommendations[0].Community.Name)
	assert.Equal(t, "Far North", res.Recommendations[1].Community.Name)
	for _, r := range res.Recommendations {
		assert.Len(t, r.Sites, 2)
		assert.NotEmpty(t, r.Justification)
	}
}

func TestRunSchoolJustificationFromBoundary(t *testing.T) {
	t.Parallel()

	// A 0.45 x 0.009 degree strip on the equator is about 50 km² and holds
	// two schools. Its reported location sits 0.135 degrees (15 km) east of
	// the nearer one, next to the only clinic.
	strip := boxFeature("Strip", 0, 0, 0.45, 0.009)
	strip.Properties = map[string]any{"lat": 0.0045, "lon": 0.155}
	in := snapshot.Inputs{
		Communities: []snapshot.Feature{strip},
		Schools: []snapshot.Feature{
			pointFeature("West School", 0.0045, 0.01),
			pointFeature("East School", 0.0045, 0.02),
		},
		Healthcare: []snapshot.Feature{pointFeature("Clinic", 0.0045, 0.155)},
	}
	ac := newTestContext(t, in, testConfig())

	res, err := Run(context.Background(), ac)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	school := res.Records[0].Metrics[model.ClassSchool]
	assert.Equal(t, 2, school.FacilityCount)
	assert.InDelta(t, 50, res.Records[0].Community.AreaKM2, 0.5)
	assert.InDelta(t, 15, school.NearestDistanceKM, 0.05)
	assert.True(t, school.Need)
	assert.False(t, res.Records[0].Metrics[model.ClassHealthcare].Need)

	require.Len(t, res.Recommendations, 1)
	r := res.Recommendations[0]
	require.Len(t, r.Sites, 1)
	site := r.Sites[model.ClassSchool]
	assert.Equal(t,
		"Due to a very low school density (0.040 per km²) and a school distance of 15.0 km, placing a new school at "+
			site.String()+" will markedly improve access.",
		r.Justification)
}

func TestRunEmptyFacilityClass(t *testing.T) {
	t.Parallel()

	in := regionInputs()
	in.Healthcare = nil
	ac := newTestContext(t, in, testConfig())

	_, err := Run(context.Background(), ac)
	var empty *EmptyIndexError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, model.ClassHealthcare, empty.Class)
}

func TestRunNothingUnderserved(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Analysis.DistanceThresholdKM = 1000
	ac := newTestContext(t, regionInputs(), cfg)

	res, err := Run(context.Background(), ac)
	require.NoError(t, err)
	assert.Empty(t, res.Underserved())
	assert.Zero(t, res.Clustering.Len())
	assert.Empty(t, res.Recommendations)
}

func TestResultMemoised(t *testing.T) {
	t.Parallel()

	ac := newTestContext(t, regionInputs(), testConfig())

	first, err := ac.Result(context.Background())
	require.NoError(t, err)
	second, err := ac.Result(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestNewContextUrbanFallback(t *testing.T) {
	t.Parallel()

	ac := newTestContext(t, regionInputs(), testConfig())
	require.NotNil(t, ac.Urban)
	assert.Equal(t, 4, ac.Urban.Len())

	in := regionInputs()
	in.UrbanCenters = []snapshot.Feature{pointFeature("Metro", -26.1, 28.1)}
	ac = newTestContext(t, in, testConfig())
	assert.Equal(t, 1, ac.Urban.Len())
}

func TestNewContextRejectsNil(t *testing.T) {
	t.Parallel()

	_, err := NewContext(nil, testConfig())
	assert.Error(t, err)
}

const communitiesGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"Alpha"},"geometry":{"type":"Point","coordinates":[28.0,-26.0]}},
 {"type":"Feature","properties":{"name":"Beta"},"geometry":{"type":"Polygon","coordinates":[[[29,-27],[29.2,-27],[29.2,-26.8],[29,-26.8],[29,-27]]]}}
]}`

const schoolsGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"School"},"geometry":{"type":"Point","coordinates":[28.01,-26.01]}}
]}`

const healthcareGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"Clinic"},"geometry":{"type":"Point","coordinates":[28.02,-26.0]}}
]}`

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	cfg := testConfig()
	cfg.Data = config.DataConfig{
		Communities: config.SourceConfig{Driver: "geojson", Path: write("c.geojson", communitiesGeoJSON), NameField: "name"},
		Schools:     config.SourceConfig{Driver: "geojson", Path: write("s.geojson", schoolsGeoJSON), NameField: "name"},
		Healthcare:  config.SourceConfig{Driver: "geojson", Path: write("h.geojson", healthcareGeoJSON), NameField: "name"},
	}

	ac, err := NewLoader(cfg, nil)(context.Background())
	require.NoError(t, err)
	assert.Len(t, ac.Snapshot.Communities, 2)

	res, err := ac.Result(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.False(t, res.Records[0].Underserved)
	assert.True(t, res.Records[1].Underserved)
	assert.True(t, res.Records[1].Metrics[model.ClassSchool].HasBoundary)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	missing := config.SourceConfig{Driver: "geojson", Path: filepath.Join(t.TempDir(), "nope.geojson")}
	cfg.Data = config.DataConfig{Communities: missing, Schools: missing, Healthcare: missing}

	_, err := Load(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: load sources")
}
