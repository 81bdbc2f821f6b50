package report

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/vivaro/vivaro/internal/config"
	"github.com/vivaro/vivaro/internal/db"
	"github.com/vivaro/vivaro/internal/model"
)

var underservedColumns = []string{
	"name", "run_id", "school_dist_km", "healthcare_dist_km",
	"school_density", "healthcare_density", "area_km2", "underserved", "geom",
}

var recommendationColumns = []string{
	"run_id", "name", "cluster_id", "facility", "justification", "geom",
}

// PostGISCounts reports how many rows an export wrote.
type PostGISCounts struct {
	Communities     int64
	Recommendations int64
}

// EnsureTables creates the export tables when they do not exist.
func EnsureTables(ctx context.Context, pool db.Pool, cfg config.ExportConfig) error {
	for _, stmt := range createStatements(cfg) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "report: ensure export tables")
		}
	}
	return nil
}

func createStatements(cfg config.ExportConfig) []string {
	var stmts []string
	for _, table := range []string{cfg.UnderservedTable, cfg.RecommendationsTable} {
		if id := db.Identifier(table); len(id) == 2 {
			stmts = append(stmts, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", db.QuoteColumn(id[0])))
			break
		}
	}
	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	name text PRIMARY KEY,
	run_id uuid NOT NULL,
	school_dist_km double precision,
	healthcare_dist_km double precision,
	school_density double precision,
	healthcare_density double precision,
	area_km2 double precision,
	underserved boolean NOT NULL,
	geom geometry(Point, 4326)
)`, db.SanitizeTable(cfg.UnderservedTable)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id uuid NOT NULL,
	name text NOT NULL,
	cluster_id integer NOT NULL,
	facility text NOT NULL,
	justification text,
	geom geometry(Point, 4326) NOT NULL
)`, db.SanitizeTable(cfg.RecommendationsTable)),
	)
	return stmts
}

// ExportPostGIS upserts every community verdict keyed by name and appends
// one recommendation row per proposed site.
func ExportPostGIS(ctx context.Context, pool db.Pool, cfg config.ExportConfig, res *model.Result) (PostGISCounts, error) {
	log := zap.L().With(zap.String("component", "report.postgis"), zap.String("run_id", res.RunID))

	communities, err := underservedRows(res)
	if err != nil {
		return PostGISCounts{}, err
	}
	recs, err := recommendationRowsFor(res)
	if err != nil {
		return PostGISCounts{}, err
	}

	var counts PostGISCounts
	counts.Communities, err = db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        cfg.UnderservedTable,
		Columns:      underservedColumns,
		ConflictKeys: []string{"name"},
	}, communities)
	if err != nil {
		return counts, eris.Wrap(err, "report: export communities")
	}

	counts.Recommendations, err = db.CopyFrom(ctx, pool, cfg.RecommendationsTable, recommendationColumns, recs)
	if err != nil {
		return counts, eris.Wrap(err, "report: export recommendations")
	}

	log.Info("postgis export complete",
		zap.Int64("communities", counts.Communities),
		zap.Int64("recommendations", counts.Recommendations),
	)
	return counts, nil
}

func underservedRows(res *model.Result) ([][]any, error) {
	rows := make([][]any, 0, len(res.Records))
	for _, rec := range res.Records {
		v := rec.View()
		var g any
		if rec.Community != nil && rec.Community.Location != nil {
			b, err := encodePoint(*rec.Community.Location)
			if err != nil {
				return nil, err
			}
			g = b
		}
		rows = append(rows, []any{
			v.Name, res.RunID, v.SchoolDist, v.HealthcareDist,
			v.SchoolDensity, v.HealthcareDensity, v.AreaKM2, v.Underserved, g,
		})
	}
	return rows, nil
}

func recommendationRowsFor(res *model.Result) ([][]any, error) {
	var rows [][]any
	for _, r := range res.Recommendations {
		if r.Community == nil {
			continue
		}
		for _, class := range model.FacilityClasses {
			site, ok := r.Sites[class]
			if !ok {
				continue
			}
			b, err := encodePoint(site)
			if err != nil {
				return nil, err
			}
			rows = append(rows, []any{res.RunID, r.Community.Name, r.ClusterID, class.MarkerKey(), r.Justification, b})
		}
	}
	return rows, nil
}

// encodePoint returns p as EWKB with SRID 4326.
func encodePoint(p model.GeoPoint) ([]byte, error) {
	g := geom.NewPointFlat(geom.XY, []float64{p.Lon, p.Lat}).SetSRID(4326)
	b, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "report: encode EWKB")
	}
	return b, nil
}
