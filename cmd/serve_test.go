package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivaro/vivaro/internal/api"
	"github.com/vivaro/vivaro/internal/config"
	"github.com/vivaro/vivaro/internal/pipeline"
)

// getFreePort returns a free TCP port on localhost.
func getFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

const testCommunities = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"Served"},"geometry":{"type":"Point","coordinates":[28.0,-26.0]}},
 {"type":"Feature","properties":{"name":"Remote"},"geometry":{"type":"Point","coordinates":[30.0,-24.0]}}
]}`

const testSchools = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"School"},"geometry":{"type":"Point","coordinates":[28.01,-26.01]}}
]}`

const testHealthcare = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"Clinic"},"geometry":{"type":"Point","coordinates":[28.0,-26.02]}}
]}`

// setTestConfig points the global config at small GeoJSON inputs.
func setTestConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) config.SourceConfig {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return config.SourceConfig{Driver: "geojson", Path: p, NameField: "name"}
	}

	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{
		Analysis: config.AnalysisConfig{
			SchoolDensityThreshold:     0.1,
			HealthcareDensityThreshold: 0.05,
			DistanceThresholdKM:        10,
			Workers:                    2,
			ProbeRadiusKM:              10,
		},
		Cluster:   config.ClusterConfig{Method: "kmeans", K: 10, Seed: 42, Projection: "local"},
		Recommend: config.RecommendConfig{BufferKM: 15, MarkerOffsetDeg: 0.01, Gating: "need", Justification: true},
		Data: config.DataConfig{
			Communities: write("communities.geojson", testCommunities),
			Schools:     write("schools.geojson", testSchools),
			Healthcare:  write("healthcare.geojson", testHealthcare),
		},
		Server: config.ServerConfig{
			Port:             8000,
			CORSOrigins:      []string{"http://127.0.0.1:5500"},
			ProbeCacheSize:   8,
			ProbeCacheTTL:    time.Minute,
			GeohashPrecision: 7,
			ShutdownTimeout:  time.Second,
		},
	}
}

func TestInitAnalysis(t *testing.T) {
	setTestConfig(t)

	env, err := initAnalysis(context.Background(), "analyze", false)
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.Pool)
	assert.Nil(t, env.dbPool())
	require.NotNil(t, env.Holder.Current())
	assert.Len(t, env.Holder.Current().Snapshot.Communities, 2)
}

func TestInitAnalysis_InvalidConfig(t *testing.T) {
	setTestConfig(t)
	cfg.Cluster.Method = "optics"

	_, err := initAnalysis(context.Background(), "analyze", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cluster.method")
}

func TestWriteSummary(t *testing.T) {
	setTestConfig(t)

	env, err := initAnalysis(context.Background(), "analyze", false)
	require.NoError(t, err)
	defer env.Close()

	res, err := env.Holder.Current().Result(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeSummary(&buf, res))
	out := buf.String()
	assert.Contains(t, out, "Communities:     2")
	assert.Contains(t, out, "Underserved:     1")
	assert.Contains(t, out, "Remote")
	assert.Contains(t, out, "Recommended sites:")
	assert.Contains(t, out, "clinic [")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

func TestServerLifecycle(t *testing.T) {
	setTestConfig(t)
	cfg.Server.Port = getFreePort(t)

	env, err := initAnalysis(context.Background(), "serve", false)
	require.NoError(t, err)
	defer env.Close()

	ctx, cancel := context.WithCancel(context.Background())
	srv := buildServer(api.NewServer(env.Holder, cfg.Server), cfg.Server)

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, cfg.Server) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/underserved", cfg.Server.Port)
	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get(url) //nolint:noctx
		if err != nil {
			return false
		}
		resp = r
		return true
	}, 2*time.Second, 20*time.Millisecond)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body api.UnderservedResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.TotalCities)
	require.Len(t, body.Underserved, 1)
	assert.Equal(t, "Remote", body.Underserved[0].Name)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunServer_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close() //nolint:errcheck

	srv := &http.Server{Addr: l.Addr().String(), Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}
	err = runServer(context.Background(), srv, config.ServerConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server listen")
}

func TestHolderServesCurrentContext(t *testing.T) {
	setTestConfig(t)

	h, err := pipeline.NewHolder(context.Background(), pipeline.NewLoader(cfg, nil))
	require.NoError(t, err)
	first := h.Current()
	require.NoError(t, h.Refresh(context.Background()))
	assert.NotSame(t, first, h.Current())
}
