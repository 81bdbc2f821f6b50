// Package source loads community, facility and urban center feature sets
// from files and databases.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vivaro/vivaro/internal/config"
	"github.com/vivaro/vivaro/internal/db"
	"github.com/vivaro/vivaro/internal/snapshot"
)

// Source loads one feature set.
type Source interface {
	Load(ctx context.Context) ([]snapshot.Feature, error)
}

// Driver names.
const (
	DriverGeoJSON   = "geojson"
	DriverShapefile = "shapefile"
	DriverPostGIS   = "postgis"
	DriverSQLite    = "sqlite"
)

// New builds the source described by cfg. pool is only required by the
// postgis driver.
func New(cfg config.SourceConfig, pool db.Pool) (Source, error) {
	nameField := cfg.NameField
	if nameField == "" {
		nameField = "name"
	}
	geomField := cfg.GeomField
	if geomField == "" {
		geomField = "geom"
	}

	switch cfg.Driver {
	case DriverGeoJSON:
		return &GeoJSON{Path: cfg.Path, NameField: nameField}, nil
	case DriverShapefile:
		return &Shapefile{Path: cfg.Path, NameField: nameField}, nil
	case DriverPostGIS:
		if pool == nil {
			return nil, eris.New("source: postgis driver requires a database pool")
		}
		return &PostGIS{Pool: pool, Table: cfg.Table, NameField: nameField, GeomField: geomField}, nil
	case DriverSQLite:
		return &SQLite{Path: cfg.Path, Table: cfg.Table, NameField: nameField, GeomField: geomField}, nil
	default:
		return nil, eris.Errorf("source: unknown driver %q", cfg.Driver)
	}
}

// NeedsPool reports whether any configured set reads from PostGIS.
func NeedsPool(data config.DataConfig) bool {
	for _, src := range data.Sources() {
		if src.Driver == DriverPostGIS {
			return true
		}
	}
	return false
}

// LoadInputs loads every configured feature set concurrently.
func LoadInputs(ctx context.Context, data config.DataConfig, pool db.Pool) (snapshot.Inputs, error) {
	log := zap.L().With(zap.String("component", "source"))

	sets := data.Sources()
	results := make(map[string][]snapshot.Feature, len(sets))
	loaded := make([][]snapshot.Feature, len(sets))
	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		cfg := sets[name]
		g.Go(func() error {
			src, err := New(cfg, pool)
			if err != nil {
				return eris.Wrapf(err, "source: %s", name)
			}
			features, err := src.Load(gctx)
			if err != nil {
				return eris.Wrapf(err, "source: load %s", name)
			}
			loaded[i] = features
			log.Debug("feature set loaded",
				zap.String("set", name),
				zap.String("driver", cfg.Driver),
				zap.Int("features", len(features)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return snapshot.Inputs{}, err
	}

	for i, name := range names {
		results[name] = loaded[i]
	}
	return snapshot.Inputs{
		Communities:  results["communities"],
		Schools:      results["schools"],
		Healthcare:   results["healthcare"],
		UrbanCenters: results["urban_centers"],
	}, nil
}

// propertyName extracts the feature name from its properties. Keys match
// case-insensitively since shapefile and database columns vary in case.
func propertyName(props map[string]any, field string) string {
	v, ok := props[field]
	if !ok {
		for k, val := range props {
			if strings.EqualFold(k, field) {
				v, ok = val, true
				break
			}
		}
	}
	if !ok || v == nil {
		return ""
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
