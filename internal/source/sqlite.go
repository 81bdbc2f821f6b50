package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/vivaro/vivaro/internal/snapshot"
)

// SQLite reads a feature table whose geometry column holds WKB or
// GeoPackage geometry blobs.
type SQLite struct {
	Path      string
	Table     string
	NameField string
	GeomField string
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Load implements Source.
func (s *SQLite) Load(ctx context.Context) ([]snapshot.Feature, error) {
	if s.Table == "" {
		return nil, eris.New("sqlite: table is required")
	}

	conn, err := sql.Open("sqlite", "file:"+s.Path+"?mode=ro")
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	defer conn.Close() //nolint:errcheck

	query := fmt.Sprintf(`SELECT COALESCE(CAST(%s AS TEXT), ''), %s FROM %s`,
		quoteIdent(s.NameField), quoteIdent(s.GeomField), quoteIdent(s.Table))
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s", s.Table)
	}
	defer rows.Close() //nolint:errcheck

	var features []snapshot.Feature
	for rows.Next() {
		var (
			name string
			blob []byte
		)
		if err := rows.Scan(&name, &blob); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", s.Table)
		}

		f := snapshot.Feature{Name: name, Properties: map[string]any{s.NameField: name}}
		if g, decErr := decodeBlob(blob); decErr != nil {
			zap.L().Debug("sqlite: undecodable geometry",
				zap.String("table", s.Table),
				zap.String("name", name),
				zap.Error(decErr),
			)
		} else {
			f.Geometry = g
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: iterate %s", s.Table)
	}
	return features, nil
}

// gpkgEnvelopeSize maps the GeoPackage envelope indicator to its byte size.
var gpkgEnvelopeSize = [...]int{0, 32, 48, 48, 64}

// decodeBlob decodes plain WKB or a GeoPackage geometry blob. A nil blob
// decodes to a nil geometry.
func decodeBlob(b []byte) (geom.T, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b) >= 8 && b[0] == 'G' && b[1] == 'P' {
		indicator := int(b[3]>>1) & 0x07
		if indicator >= len(gpkgEnvelopeSize) {
			return nil, eris.Errorf("sqlite: invalid geopackage envelope indicator %d", indicator)
		}
		header := 8 + gpkgEnvelopeSize[indicator]
		if len(b) < header {
			return nil, eris.New("sqlite: truncated geopackage header")
		}
		b = b[header:]
	}
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: decode wkb")
	}
	return g, nil
}
