package source

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/vivaro/vivaro/internal/snapshot"
)

// GeoJSON reads a FeatureCollection file.
type GeoJSON struct {
	Path      string
	NameField string
}

// rawCollection defers per-feature decoding so one malformed geometry does
// not reject the whole file.
type rawCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

type rawProperties struct {
	Properties map[string]any `json:"properties"`
}

// Load implements Source.
func (s *GeoJSON) Load(_ context.Context) ([]snapshot.Feature, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "geojson: read %s", s.Path)
	}
	return s.decode(data)
}

func (s *GeoJSON) decode(data []byte) ([]snapshot.Feature, error) {
	var fc rawCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "geojson: decode %s", s.Path)
	}
	if fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("geojson: %s is a %q, want FeatureCollection", s.Path, fc.Type)
	}

	features := make([]snapshot.Feature, 0, len(fc.Features))
	for i, raw := range fc.Features {
		var f geojson.Feature
		if err := json.Unmarshal(raw, &f); err != nil {
			// Keep the record so the snapshot reports it as invalid.
			var props rawProperties
			_ = json.Unmarshal(raw, &props)
			zap.L().Debug("geojson: undecodable feature",
				zap.String("path", s.Path),
				zap.Int("index", i),
				zap.Error(err),
			)
			features = append(features, snapshot.Feature{
				Name:       propertyName(props.Properties, s.NameField),
				Properties: props.Properties,
			})
			continue
		}
		features = append(features, snapshot.Feature{
			Name:       propertyName(f.Properties, s.NameField),
			Properties: f.Properties,
			Geometry:   f.Geometry,
		})
	}
	return features, nil
}
