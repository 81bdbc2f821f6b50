package source

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/vivaro/vivaro/internal/db"
	"github.com/vivaro/vivaro/internal/snapshot"
)

// PostGIS reads a feature table through a pgx pool. Geometries are fetched
// as EWKB and reprojected to EPSG:4326 when they carry another SRID.
type PostGIS struct {
	Pool      db.Pool
	Table     string
	NameField string
	GeomField string
}

func (s *PostGIS) query() string {
	name := db.QuoteColumn(s.NameField)
	g := db.QuoteColumn(s.GeomField)
	return fmt.Sprintf(
		`SELECT COALESCE(%[1]s::text, ''), ST_AsEWKB(CASE WHEN ST_SRID(%[2]s) IN (0, 4326) THEN %[2]s ELSE ST_Transform(%[2]s, 4326) END) FROM %[3]s`,
		name, g, db.SanitizeTable(s.Table),
	)
}

// Load implements Source.
func (s *PostGIS) Load(ctx context.Context) ([]snapshot.Feature, error) {
	if s.Table == "" {
		return nil, eris.New("postgis: table is required")
	}

	rows, err := s.Pool.Query(ctx, s.query())
	if err != nil {
		return nil, eris.Wrapf(err, "postgis: query %s", s.Table)
	}
	defer rows.Close()

	var features []snapshot.Feature
	for rows.Next() {
		var (
			name string
			data []byte
		)
		if err := rows.Scan(&name, &data); err != nil {
			return nil, eris.Wrapf(err, "postgis: scan %s", s.Table)
		}

		f := snapshot.Feature{Name: name, Properties: map[string]any{s.NameField: name}}
		if len(data) > 0 {
			g, decErr := ewkb.Unmarshal(data)
			if decErr != nil {
				zap.L().Debug("postgis: undecodable geometry",
					zap.String("table", s.Table),
					zap.String("name", name),
					zap.Error(decErr),
				)
			} else {
				f.Geometry = g
			}
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgis: iterate %s", s.Table)
	}
	return features, nil
}
