package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/vivaro/vivaro/internal/model"
)

func sampleResult() *model.Result {
	served := model.Pt(-26, 28)
	remote := model.Pt(-24, 30)
	remoteCommunity := &model.Community{Name: "Remote", Location: &remote}
	records := []model.UnderservedRecord{
		{
			Community: &model.Community{Name: "Served", Location: &served, AreaKM2: 120.456},
			Metrics: map[model.FacilityClass]model.ServiceMetrics{
				model.ClassSchool:     {NearestDistanceKM: 1.234, DensityPerKM2: 0.2512, HasBoundary: true},
				model.ClassHealthcare: {NearestDistanceKM: 2.5, DensityPerKM2: 0.1, HasBoundary: true},
			},
		},
		{
			Community: remoteCommunity,
			Metrics: map[model.FacilityClass]model.ServiceMetrics{
				model.ClassSchool:     {NearestDistanceKM: 40, Need: true},
				model.ClassHealthcare: {NearestDistanceKM: 55.555, Need: true},
			},
			Underserved: true,
		},
	}
	clustering := model.NewClustering([]model.Cluster{{ID: 0, Members: []string{"Remote"}, Centroid: remote}})
	return &model.Result{
		RunID:      "7b0c4c8e-3f63-4b5e-9a36-2a3d0b3c0a11",
		StartedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Records:    records,
		Clustering: clustering,
		Recommendations: []model.Recommendation{{
			Community: remoteCommunity,
			ClusterID: 0,
			Sites: map[model.FacilityClass]model.GeoPoint{
				model.ClassSchool:     remote,
				model.ClassHealthcare: remote.Offset(0.01, -0.01),
			},
			Justification: "Needed.",
		}},
	}
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument(sampleResult())

	assert.Equal(t, 2, doc.TotalCities)
	assert.Equal(t, 1, doc.Clusters)
	require.Len(t, doc.Communities, 2)
	assert.InDelta(t, 1.23, doc.Communities[0].SchoolDist, 1e-9)
	assert.InDelta(t, 0.251, doc.Communities[0].SchoolDensity, 1e-9)
	assert.InDelta(t, 55.56, doc.Communities[1].HealthcareDist, 1e-9)
	require.Len(t, doc.Recommendations, 1)
	assert.Equal(t, [2]float64{-24, 30}, doc.Recommendations[0].RecommendedFacility["school"])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, NewDocument(sampleResult())))

	var got Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "7b0c4c8e-3f63-4b5e-9a36-2a3d0b3c0a11", got.RunID)
	assert.Len(t, got.Communities, 2)
	assert.Contains(t, buf.String(), `"recommended_facility"`)
	assert.Contains(t, buf.String(), `"clinic"`)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, NewDocument(sampleResult())))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2, got["total_cities"])
	assert.Contains(t, buf.String(), "school_dist: 1.23")
	assert.Contains(t, buf.String(), "justification: Needed.")
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, NewDocument(sampleResult())))

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 6)
	assert.Equal(t, communityHeader, records[0])
	assert.Equal(t, []string{"Served", "-26", "28", "1.23", "2.5", "0.251", "0.1", "120.46", "false"}, records[1])
	assert.Equal(t, "true", records[2][8])
	assert.Equal(t, recommendationHeader, records[3])
	assert.Equal(t, []string{"Remote", "school", "-24", "30", "Needed."}, records[4])
	assert.Equal(t, []string{"Remote", "clinic", "-23.99", "29.99", "Needed."}, records[5])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, NewDocument(sampleResult())))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)

	communities, ok := f.Sheet[SheetCommunities]
	require.True(t, ok)
	require.Len(t, communities.Rows, 3)
	assert.Equal(t, "name", communities.Rows[0].Cells[0].String())
	assert.Equal(t, "Remote", communities.Rows[2].Cells[0].String())
	lat, err := communities.Rows[2].Cells[1].Float()
	require.NoError(t, err)
	assert.InDelta(t, -24, lat, 1e-9)
	assert.True(t, communities.Rows[2].Cells[8].Bool())

	recs, ok := f.Sheet[SheetRecommendations]
	require.True(t, ok)
	require.Len(t, recs.Rows, 3)
	assert.Equal(t, "clinic", recs.Rows[2].Cells[1].String())
}

func TestWriteUnsupported(t *testing.T) {
	err := Write(&bytes.Buffer{}, "pdf", Document{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported format "pdf"`)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteFile(path, FormatJSON, NewDocument(sampleResult())))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_cities": 2`)

	err = WriteFile(filepath.Join(t.TempDir(), "missing", "out.json"), FormatJSON, Document{})
	assert.Error(t, err)
}
