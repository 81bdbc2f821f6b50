package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivaro/vivaro/internal/model"
	"github.com/vivaro/vivaro/internal/snapshot"
)

func probeInputs() snapshot.Inputs {
	return snapshot.Inputs{
		Communities: []snapshot.Feature{
			boxFeature("Cape Town", 18.3, -34.1, 18.7, -33.8),
			pointFeature("Hamlet", -30, 25),
		},
		Schools: []snapshot.Feature{
			pointFeature("s1", -33.95, 18.5),
			pointFeature("s2", -33.96, 18.51),
			pointFeature("s3", -33.0, 18.5),
		},
		Healthcare: []snapshot.Feature{
			pointFeature("h1", -33.95, 18.45),
		},
	}
}

func TestProbe(t *testing.T) {
	t.Parallel()

	ac := newTestContext(t, probeInputs(), testConfig())

	res, err := Probe(ac, model.Pt(-33.95, 18.5))
	require.NoError(t, err)
	assert.InDelta(t, 10.0, res.RadiusKM, 0)

	school := res.Metrics[model.ClassSchool]
	assert.Equal(t, 2, school.FacilityCount)
	assert.InDelta(t, 0, school.NearestDistanceKM, 1e-9)
	assert.InDelta(t, 2/(math.Pi*100), school.DensityPerKM2, 1e-12)
	assert.False(t, school.Need)

	clinic := res.Metrics[model.ClassHealthcare]
	assert.Equal(t, 1, clinic.FacilityCount)
	assert.False(t, res.Underserved)
	assert.Equal(t, "urban", res.Remoteness)

	v := res.View()
	assert.Equal(t, 2, v.SchoolCount)
	assert.InDelta(t, 0.006, v.SchoolDensity, 1e-12)
}

func TestProbeRemote(t *testing.T) {
	t.Parallel()

	ac := newTestContext(t, probeInputs(), testConfig())

	res, err := Probe(ac, model.Pt(-20, 30))
	require.NoError(t, err)
	assert.True(t, res.Underserved)
	for _, class := range model.FacilityClasses {
		m := res.Metrics[class]
		assert.Zero(t, m.FacilityCount)
		assert.True(t, m.Need)
	}
	assert.Greater(t, res.UrbanDistanceKM, 1000.0)
	assert.Equal(t, "remote", res.View().Remoteness)
}

func TestProbeRemotenessWithoutUrbanIndex(t *testing.T) {
	t.Parallel()

	ac := newTestContext(t, probeInputs(), testConfig())
	ac.Urban = nil

	res, err := Probe(ac, model.Pt(-33.95, 18.5))
	require.NoError(t, err)
	assert.InDelta(t, -1.0, res.UrbanDistanceKM, 0)
	assert.Empty(t, res.Remoteness)
}

func TestProbeInvalidCoordinate(t *testing.T) {
	t.Parallel()

	ac := newTestContext(t, probeInputs(), testConfig())

	for _, p := range []model.GeoPoint{model.Pt(91, 0), model.Pt(0, -181), model.Pt(math.NaN(), 0)} {
		_, err := Probe(ac, p)
		var invalid *model.InvalidGeometryError
		assert.ErrorAs(t, err, &invalid, "point %v", p)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	ac := newTestContext(t, probeInputs(), testConfig())

	res, ok, err := Lookup(ac, "  cape TOWN ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Cape Town", res.Record.Community.Name)

	v := res.View()
	assert.Equal(t, "Cape Town", v.Name)
	assert.True(t, v.HasBoundary)
	assert.Equal(t, 2, v.SchoolCount)
	assert.Equal(t, 1, v.HealthcareCount)
	assert.Positive(t, v.AreaKM2)
	assert.Equal(t, "urban", v.Remoteness)

	hamlet, ok, err := Lookup(ac, "hamlet")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, hamlet.View().HasBoundary)
	assert.True(t, hamlet.Record.Underserved)

	_, ok, err = Lookup(ac, "Atlantis")
	require.NoError(t, err)
	assert.False(t, ok)
}
