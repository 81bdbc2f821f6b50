package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Cluster   ClusterConfig   `yaml:"cluster" mapstructure:"cluster"`
	Recommend RecommendConfig `yaml:"recommend" mapstructure:"recommend"`
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnalysisConfig holds the underserved classification thresholds.
type AnalysisConfig struct {
	SchoolDensityThreshold     float64 `yaml:"school_density_threshold" mapstructure:"school_density_threshold"`
	HealthcareDensityThreshold float64 `yaml:"healthcare_density_threshold" mapstructure:"healthcare_density_threshold"`
	DistanceThresholdKM        float64 `yaml:"distance_threshold_km" mapstructure:"distance_threshold_km"`
	Workers                    int     `yaml:"workers" mapstructure:"workers"`
	ProbeRadiusKM              float64 `yaml:"probe_radius_km" mapstructure:"probe_radius_km"`
}

// ClusterConfig configures the site clustering engine.
type ClusterConfig struct {
	Method        string  `yaml:"method" mapstructure:"method"` // kmeans | dbscan
	K             int     `yaml:"k" mapstructure:"k"`
	Seed          uint64  `yaml:"seed" mapstructure:"seed"`
	MaxIterations int     `yaml:"max_iterations" mapstructure:"max_iterations"`
	Projection    string  `yaml:"projection" mapstructure:"projection"` // local | mercator
	EpsKM         float64 `yaml:"eps_km" mapstructure:"eps_km"`
	MinSamples    int     `yaml:"min_samples" mapstructure:"min_samples"`
}

// RecommendConfig configures recommendation synthesis.
type RecommendConfig struct {
	ReachabilityFilter bool    `yaml:"reachability_filter" mapstructure:"reachability_filter"`
	BufferKM           float64 `yaml:"buffer_km" mapstructure:"buffer_km"`
	MarkerOffsetDeg    float64 `yaml:"marker_offset_deg" mapstructure:"marker_offset_deg"`
	Gating             string  `yaml:"gating" mapstructure:"gating"` // need | underserved
	Justification      bool    `yaml:"justification" mapstructure:"justification"`
}

// SourceConfig locates one input feature set.
type SourceConfig struct {
	Driver    string `yaml:"driver" mapstructure:"driver"` // geojson | shapefile | postgis | sqlite
	Path      string `yaml:"path" mapstructure:"path"`
	Table     string `yaml:"table" mapstructure:"table"`
	NameField string `yaml:"name_field" mapstructure:"name_field"`
	GeomField string `yaml:"geom_field" mapstructure:"geom_field"`
}

// Configured reports whether the source has a driver.
func (s SourceConfig) Configured() bool {
	return s.Driver != ""
}

// DataConfig configures the input sets and how often they reload.
type DataConfig struct {
	Communities       SourceConfig  `yaml:"communities" mapstructure:"communities"`
	Schools           SourceConfig  `yaml:"schools" mapstructure:"schools"`
	Healthcare        SourceConfig  `yaml:"healthcare" mapstructure:"healthcare"`
	UrbanCenters      SourceConfig  `yaml:"urban_centers" mapstructure:"urban_centers"`
	RefreshInterval   time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval"`
	SimplifyTolerance float64       `yaml:"simplify_tolerance" mapstructure:"simplify_tolerance"`
	LoadTimeout       time.Duration `yaml:"load_timeout" mapstructure:"load_timeout"`
}

// Sources returns every configured source keyed by set name.
func (d DataConfig) Sources() map[string]SourceConfig {
	out := map[string]SourceConfig{
		"communities": d.Communities,
		"schools":     d.Schools,
		"healthcare":  d.Healthcare,
	}
	if d.UrbanCenters.Configured() {
		out["urban_centers"] = d.UrbanCenters
	}
	return out
}

// DatabaseConfig configures the PostgreSQL pool used by postgis sources and
// the postgis export.
type DatabaseConfig struct {
	URL             string        `yaml:"url" mapstructure:"url"`
	MaxConns        int32         `yaml:"max_conns" mapstructure:"max_conns"`
	ConnectAttempts int           `yaml:"connect_attempts" mapstructure:"connect_attempts"`
	ConnectBackoff  time.Duration `yaml:"connect_backoff" mapstructure:"connect_backoff"`
}

// ExportConfig names the tables written by the postgis export.
type ExportConfig struct {
	UnderservedTable     string `yaml:"underserved_table" mapstructure:"underserved_table"`
	RecommendationsTable string `yaml:"recommendations_table" mapstructure:"recommendations_table"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int           `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string      `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimit          float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst          int           `yaml:"rate_burst" mapstructure:"rate_burst"`
	ProbeCacheSize     int           `yaml:"probe_cache_size" mapstructure:"probe_cache_size"`
	ProbeCacheTTL      time.Duration `yaml:"probe_cache_ttl" mapstructure:"probe_cache_ttl"`
	GeohashPrecision   int           `yaml:"geohash_precision" mapstructure:"geohash_precision"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	ReadHeaderTimeout  time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout"`
	RequestTimeoutSecs int           `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from an optional .env file, config.yaml and the
// environment, in increasing precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VIVARO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("analysis.school_density_threshold", 0.1)
	v.SetDefault("analysis.healthcare_density_threshold", 0.05)
	v.SetDefault("analysis.distance_threshold_km", 10.0)
	v.SetDefault("analysis.workers", 8)
	v.SetDefault("analysis.probe_radius_km", 10.0)

	v.SetDefault("cluster.method", "kmeans")
	v.SetDefault("cluster.k", 10)
	v.SetDefault("cluster.seed", 42)
	v.SetDefault("cluster.max_iterations", 300)
	v.SetDefault("cluster.projection", "local")
	v.SetDefault("cluster.eps_km", 20.0)
	v.SetDefault("cluster.min_samples", 3)

	v.SetDefault("recommend.reachability_filter", false)
	v.SetDefault("recommend.buffer_km", 15.0)
	v.SetDefault("recommend.marker_offset_deg", 0.01)
	v.SetDefault("recommend.gating", "need")
	v.SetDefault("recommend.justification", true)

	for set, path := range map[string]string{
		"communities":   "data/communities.geojson",
		"schools":       "data/schools.geojson",
		"healthcare":    "data/healthcare.geojson",
		"urban_centers": "",
	} {
		driver := "geojson"
		if path == "" {
			driver = ""
		}
		v.SetDefault("data."+set+".driver", driver)
		v.SetDefault("data."+set+".path", path)
		v.SetDefault("data."+set+".table", "")
		v.SetDefault("data."+set+".name_field", "name")
		v.SetDefault("data."+set+".geom_field", "geom")
	}
	v.SetDefault("data.refresh_interval", "0s")
	v.SetDefault("data.simplify_tolerance", 0.0)
	v.SetDefault("data.load_timeout", "2m")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.connect_attempts", 3)
	v.SetDefault("database.connect_backoff", "500ms")

	v.SetDefault("export.underserved_table", "vivaro.underserved")
	v.SetDefault("export.recommendations_table", "vivaro.recommendations")

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"http://127.0.0.1:5500"})
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.probe_cache_size", 1024)
	v.SetDefault("server.probe_cache_ttl", "10m")
	v.SetDefault("server.geohash_precision", 7)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.request_timeout_secs", 30)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

var knownDrivers = map[string]bool{"geojson": true, "shapefile": true, "postgis": true, "sqlite": true}

// Validate checks the configuration for the given command mode: "analyze",
// "serve" or "export".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "analyze", "export":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
		if c.Server.GeohashPrecision < 1 || c.Server.GeohashPrecision > 12 {
			errs = append(errs, "server.geohash_precision must be between 1 and 12")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	a := c.Analysis
	if a.SchoolDensityThreshold < 0 || a.HealthcareDensityThreshold < 0 {
		errs = append(errs, "analysis density thresholds must be >= 0")
	}
	if a.DistanceThresholdKM < 0 {
		errs = append(errs, "analysis.distance_threshold_km must be >= 0")
	}
	if a.ProbeRadiusKM <= 0 {
		errs = append(errs, "analysis.probe_radius_km must be > 0")
	}

	cl := c.Cluster
	switch cl.Method {
	case "kmeans":
		if cl.K < 1 {
			errs = append(errs, "cluster.k must be >= 1")
		}
	case "dbscan":
		if cl.EpsKM <= 0 {
			errs = append(errs, "cluster.eps_km must be > 0")
		}
		if cl.MinSamples < 1 {
			errs = append(errs, "cluster.min_samples must be >= 1")
		}
	default:
		errs = append(errs, fmt.Sprintf("cluster.method %q must be kmeans or dbscan", cl.Method))
	}
	if cl.Projection != "local" && cl.Projection != "mercator" {
		errs = append(errs, fmt.Sprintf("cluster.projection %q must be local or mercator", cl.Projection))
	}

	r := c.Recommend
	if r.Gating != "need" && r.Gating != "underserved" {
		errs = append(errs, fmt.Sprintf("recommend.gating %q must be need or underserved", r.Gating))
	}
	if r.BufferKM < 0 {
		errs = append(errs, "recommend.buffer_km must be >= 0")
	}

	needsDB := false
	for _, set := range []string{"communities", "schools", "healthcare", "urban_centers"} {
		src, ok := c.Data.Sources()[set]
		if !ok {
			continue
		}
		if !knownDrivers[src.Driver] {
			errs = append(errs, fmt.Sprintf("data.%s.driver %q is not supported", set, src.Driver))
			continue
		}
		switch src.Driver {
		case "postgis":
			needsDB = true
			if src.Table == "" {
				errs = append(errs, fmt.Sprintf("data.%s.table is required", set))
			}
		case "sqlite":
			if src.Path == "" || src.Table == "" {
				errs = append(errs, fmt.Sprintf("data.%s.path and table are required", set))
			}
		default:
			if src.Path == "" {
				errs = append(errs, fmt.Sprintf("data.%s.path is required", set))
			}
		}
	}
	if needsDB && c.Database.URL == "" {
		errs = append(errs, "database.url is required for postgis sources")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
