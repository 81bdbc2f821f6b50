package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestShapefileLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cities.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 40)}))

	shell := []shp.Point{{X: 28, Y: -26}, {X: 28, Y: -25}, {X: 29, Y: -25}, {X: 29, Y: -26}, {X: 28, Y: -26}}
	hole := []shp.Point{{X: 28.4, Y: -25.6}, {X: 28.6, Y: -25.6}, {X: 28.6, Y: -25.4}, {X: 28.4, Y: -25.4}, {X: 28.4, Y: -25.6}}
	idx := w.Write((*shp.Polygon)(shp.NewPolyLine([][]shp.Point{shell, hole})))
	require.NoError(t, w.WriteAttribute(int(idx), 0, "Beta"))
	w.Close()

	features, err := (&Shapefile{Path: path, NameField: "name"}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, features, 1)

	f := features[0]
	assert.Equal(t, "Beta", f.Name)
	mp, ok := f.Geometry.(*geom.MultiPolygon)
	require.True(t, ok)
	require.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings())
}

func TestShapefileOpenError(t *testing.T) {
	t.Parallel()

	_, err := (&Shapefile{Path: filepath.Join(t.TempDir(), "missing.shp")}).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shapefile: open")
}

func TestShapeToGeom(t *testing.T) {
	t.Parallel()

	p, ok := shapeToGeom(&shp.Point{X: 28, Y: -26}).(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, []float64{28, -26}, p.FlatCoords())

	assert.Nil(t, shapeToGeom(&shp.PolyLine{}))
	assert.Nil(t, shapeToGeom(&shp.MultiPoint{}))
	assert.Nil(t, shapeToGeom(&shp.Polygon{}))

	// Two clockwise rings become two polygons.
	a := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	b := []shp.Point{{X: 5, Y: 5}, {X: 5, Y: 6}, {X: 6, Y: 6}, {X: 6, Y: 5}, {X: 5, Y: 5}}
	mp, ok := shapeToGeom((*shp.Polygon)(shp.NewPolyLine([][]shp.Point{a, b}))).(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 2, mp.NumPolygons())
}

func TestSignedArea(t *testing.T) {
	t.Parallel()

	cw := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	assert.InDelta(t, -1, signedArea(cw), 1e-12)

	ccw := []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0}}
	assert.InDelta(t, 1, signedArea(ccw), 1e-12)
}
