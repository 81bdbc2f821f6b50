package source

import (
	"context"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/vivaro/vivaro/internal/snapshot"
)

// Shapefile reads a .shp file and its .dbf attributes.
type Shapefile struct {
	Path      string
	NameField string
}

// Load implements Source.
func (s *Shapefile) Load(ctx context.Context) ([]snapshot.Feature, error) {
	reader, err := shp.Open(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", s.Path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var features []snapshot.Feature
	var unsupported int
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "shapefile: load cancelled")
		}

		_, shape := reader.Shape()
		props := make(map[string]any, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				props[name] = val
			}
		}

		g := shapeToGeom(shape)
		if g == nil {
			unsupported++
		}
		features = append(features, snapshot.Feature{
			Name:       propertyName(props, s.NameField),
			Properties: props,
			Geometry:   g,
		})
	}

	if unsupported > 0 {
		zap.L().Debug("shapefile: records without usable geometry",
			zap.String("path", s.Path),
			zap.Int("count", unsupported),
		)
	}
	return features, nil
}

// shapeToGeom converts a go-shp shape to go-geom. Unsupported or empty
// shapes return nil.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(4326)
	case *shp.PointZ:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(4326)
	case *shp.MultiPoint:
		if len(s.Points) == 0 {
			return nil
		}
		return geom.NewMultiPointFlat(geom.XY, flatPoints(s.Points)).SetSRID(4326)
	case *shp.Polygon:
		return polygonParts(s.NumParts, s.Parts, s.Points)
	case *shp.PolygonZ:
		return polygonParts(s.NumParts, s.Parts, s.Points)
	default:
		return nil
	}
}

// polygonParts assembles shapefile rings into a multipolygon. Clockwise rings
// are shells; counter-clockwise rings are holes of the preceding shell.
func polygonParts(numParts int32, parts []int32, points []shp.Point) geom.T {
	if numParts == 0 || len(points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("shapefile: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < numParts; i++ {
		start := parts[i]
		end := int32(len(points))
		if i+1 < numParts {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || start >= end {
			continue
		}

		ringPts := points[start:end]
		ring := geom.NewLinearRingFlat(geom.XY, flatPoints(ringPts))
		if current == nil || signedArea(ringPts) < 0 {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("shapefile: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is the shoelace sum; negative for clockwise rings.
func signedArea(pts []shp.Point) float64 {
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return sum / 2
}

func flatPoints(pts []shp.Point) []float64 {
	flat := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}
