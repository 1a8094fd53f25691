package prepare

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godeepar/umep/algorithm"
	"github.com/godeepar/umep/crs"
	"github.com/godeepar/umep/observability"
	"github.com/godeepar/umep/raster"
	"github.com/godeepar/umep/vector"
)

func writeRaster(t *testing.T, dir, name string, g *raster.Grid) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, raster.Write(path, g))
	return path
}

func writeLayer(t *testing.T, dir, name string, l *vector.Layer) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, vector.Write(path, l))
	return path
}

func rect(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

func footprints(c crs.CRS, polys ...orb.Polygon) *vector.Layer {
	l := &vector.Layer{Name: "buildings", Kind: vector.Polygon, CRS: c, Fields: []vector.Field{{Name: "id", Kind: vector.Number}}}
	for i, p := range polys {
		f := vector.NewFeature(i, p)
		f.Properties["id"] = float64(i + 1)
		l.Features = append(l.Features, f)
	}
	return l
}

func trees(c crs.CRS, rows ...[3]interface{}) *vector.Layer {
	l := &vector.Layer{Name: "trees", Kind: vector.Point, CRS: c, Fields: []vector.Field{
		{Name: "r", Kind: vector.Number},
		{Name: "h", Kind: vector.Number},
	}}
	for i, row := range rows {
		f := vector.NewFeature(i, row[0].(orb.Point))
		f.Properties["r"] = row[1]
		f.Properties["h"] = row[2]
		l.Features = append(l.Features, f)
	}
	return l
}

func run(t *testing.T, p *Prepare, raw map[string]string) (algorithm.Outputs, *algorithm.Recorder, error) {
	t.Helper()
	v := algorithm.NewValues(p.Params(), raw)
	require.NoError(t, v.Validate())
	var rec algorithm.Recorder
	out, err := p.Run(context.Background(), v, &rec)
	return out, &rec, err
}

func heights(t *testing.T, l *vector.Layer, field string) []interface{} {
	t.Helper()
	out := make([]interface{}, len(l.Features))
	for i, f := range l.Features {
		out[i] = f.Properties[field]
	}
	return out
}

func TestCrownRule(t *testing.T) {
	point := func(r, h interface{}) *vector.Feature {
		f := vector.NewFeature(0, orb.Point{0, 0})
		f.Properties["r"] = r
		f.Properties["h"] = h
		return f
	}
	tests := []struct {
		name         string
		rule         CrownRule
		feature      *vector.Feature
		radius, high float64
	}{
		{"radius only", CrownRule{RadiusField: "r", Aspect: 0.75}, point(5.0, nil), 5, 5 / 0.75},
		{"radius only null", CrownRule{RadiusField: "r", Aspect: 0.75}, point(nil, 12.0), 0, 0},
		{"height only", CrownRule{HeightField: "h", Aspect: 0.75}, point(nil, 9.0), 9 * 0.75, 9},
		{"height only null", CrownRule{HeightField: "h", Aspect: 0.75}, point(3.0, nil), 0, 0},
		{"both set", CrownRule{RadiusField: "r", HeightField: "h", Aspect: 0.75}, point(2.0, 10.0), 2, 10},
		{"both, radius null", CrownRule{RadiusField: "r", HeightField: "h", Aspect: 0.75}, point(nil, 9.0), 9 * 0.75, 9},
		{"both, height null", CrownRule{RadiusField: "r", HeightField: "h", Aspect: 0.75}, point(5.0, nil), 5, 5 / 0.75},
		{"both null", CrownRule{RadiusField: "r", HeightField: "h", Aspect: 0.75}, point(nil, nil), 0, 0},
		{"text values", CrownRule{RadiusField: "r", HeightField: "h", Aspect: 0.5}, point("4", ""), 4, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, h := tt.rule.Apply(tt.feature)
			assert.InDelta(t, tt.radius, r, 1e-12)
			assert.InDelta(t, tt.high, h, 1e-12)
		})
	}
}

func TestPrepare_BuildingHeightAboveGround(t *testing.T) {
	dir := t.TempDir()
	sweref := crs.EPSG(3006)
	gt := [6]float64{0, 1, 0, 1, 0, -1}
	dsm := raster.New(3, 1, gt, sweref)
	copy(dsm.Data, []float64{13, 14, 15})
	dem := raster.New(3, 1, gt, sweref)
	copy(dem.Data, []float64{10, 10, 10})

	m := observability.NewMetrics()
	out, rec, err := run(t, New(dir, m), map[string]string{
		ParamBuildFootprint: writeLayer(t, dir, "fp.geojson", footprints(sweref, rect(0, 0, 3, 1), rect(100, 100, 101, 101))),
		ParamBuildDSM:       writeRaster(t, dir, "dsm.tif", dsm),
		ParamBuildDEM:       writeRaster(t, dir, "dem.tif", dem),
		OutputBuildings:     filepath.Join(dir, "buildings.geojson"),
	})
	require.NoError(t, err)
	assert.Equal(t, "", out[OutputVegetation])
	require.Equal(t, filepath.Join(dir, "buildings.geojson"), out[OutputBuildings])
	assert.NotEmpty(t, rec.Warnings, "the second footprint covers no pixel")

	got, err := vector.Read(out[OutputBuildings])
	require.NoError(t, err)
	assert.True(t, got.HasField("ROOF_HEIGHT"))
	assert.False(t, got.HasField(medianField))
	assert.Equal(t, []interface{}{4.0, nil}, heights(t, got, "ROOF_HEIGHT"))
	assert.Equal(t, 1.0, got.Features[0].Properties["id"])
	assert.Equal(t, 3006, got.CRS.EPSG)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FeaturesWritten.WithLabelValues(OutputBuildings)))
}

func TestPrepare_BuildingReprojectsDSM(t *testing.T) {
	dir := t.TempDir()
	dsm := raster.New(10, 10, [6]float64{18, 0.001, 0, 59.01, 0, -0.001}, crs.EPSG(4326))
	for i := range dsm.Data {
		dsm.Data[i] = 7
	}
	toMercator, err := crs.NewTransform(crs.EPSG(4326), crs.EPSG(3857))
	require.NoError(t, err)
	x, y, err := toMercator.Point(18.005, 59.005)
	require.NoError(t, err)

	out, rec, err := run(t, New(dir, nil), map[string]string{
		ParamBuildFootprint:   writeLayer(t, dir, "fp.geojson", footprints(crs.EPSG(3857), rect(x-20, y-20, x+20, y+20))),
		ParamBuildDSM:         writeRaster(t, dir, "dsm.tif", dsm),
		ParamBuildHeightField: "HEIGHT",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultBuildName+".geojson"), out[OutputBuildings])
	assert.Contains(t, rec.Texts, "Reprojecting building DSM from EPSG:4326 to EPSG:3857.")

	got, err := vector.Read(out[OutputBuildings])
	require.NoError(t, err)
	assert.Equal(t, []interface{}{7.0}, heights(t, got, "HEIGHT"))
}

func TestPrepare_VegetationFromRaster(t *testing.T) {
	dir := t.TempDir()
	cdsm := raster.New(3, 2, [6]float64{0, 1, 0, 2, 0, -1}, crs.EPSG(3006))
	copy(cdsm.Data, []float64{
		0.4, 2.6, 3.2,
		0, 5.1, 5.4,
	})

	out, rec, err := run(t, New(dir, nil), map[string]string{
		ParamVegCDSM:     writeRaster(t, dir, "cdsm.tif", cdsm),
		OutputVegetation: filepath.Join(dir, "veg.shp"),
	})
	require.NoError(t, err)
	assert.Empty(t, rec.Warnings)
	assert.Equal(t, "", out[OutputBuildings])

	got, err := vector.Read(out[OutputVegetation])
	require.NoError(t, err)
	assert.Equal(t, 3006, got.CRS.EPSG)
	require.Len(t, got.Features, 2)
	assert.Equal(t, []interface{}{3.0, 5.0}, heights(t, got, "VEG_HEIGHT"))
	for _, f := range got.Features {
		_, ok := f.Geometry.(orb.Polygon)
		require.True(t, ok, "two neighbouring cells merge into one polygon")
		assert.InDelta(t, 2, math.Abs(planar.Area(f.Geometry)), 1e-9)
	}
}

func TestVegetationFromRaster_NoCRS(t *testing.T) {
	cdsm := raster.New(1, 1, [6]float64{0, 1, 0, 1, 0, -1}, crs.CRS{})
	cdsm.Data[0] = 4
	var rec algorithm.Recorder
	l, err := VegetationFromRaster(context.Background(), cdsm, "VEG_HEIGHT", &rec)
	require.NoError(t, err)
	assert.True(t, l.CRS.IsEmpty())
	assert.Len(t, l.Features, 1)
	assert.Len(t, rec.Warnings, 1)
}

func TestPrepare_VegetationFromPoints(t *testing.T) {
	dir := t.TempDir()
	sweref := crs.EPSG(3006)
	points := trees(sweref,
		[3]interface{}{orb.Point{674000, 6580000}, 5.0, nil},
		[3]interface{}{orb.Point{674100, 6580000}, nil, 9.0},
		[3]interface{}{orb.Point{674200, 6580000}, nil, nil},
		[3]interface{}{orb.Point{674300, 6580000}, 2.0, 10.0},
	)

	m := observability.NewMetrics()
	out, rec, err := run(t, New(dir, m), map[string]string{
		ParamVegPoints:      writeLayer(t, dir, "trees.geojson", points),
		ParamRadiusVegField: "r",
		ParamHeightVegField: "h",
		OutputVegetation:    filepath.Join(dir, "crowns.gpkg"),
		ParamS2Level:        "12",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "crowns.geojson"), out[OutputVegetation])
	require.Len(t, rec.Warnings, 2, "format change and the point without crown")
	assert.Equal(t, "1 vegetation points have no crown radius and were left out, the output has 3 features for 4 input points", rec.Warnings[1])

	got, err := vector.Read(out[OutputVegetation])
	require.NoError(t, err)
	require.Len(t, got.Features, 3)
	assert.Equal(t, vector.Polygon, got.Kind)
	assert.True(t, got.HasField("r"), "input attributes kept")
	assert.True(t, got.HasField(s2Field))

	want := []struct{ radius, height float64 }{{5, 5 / 0.75}, {6.75, 9}, {2, 10}}
	for i, f := range got.Features {
		h, ok := f.Float("VEG_HEIGHT")
		require.True(t, ok)
		assert.InDelta(t, want[i].height, h, 1e-9)
		b := f.Geometry.Bound()
		assert.InDelta(t, 2*want[i].radius, b.Max[0]-b.Min[0], 1e-9)
		assert.NotEmpty(t, f.Properties[s2Field])
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FeaturesWritten.WithLabelValues(OutputVegetation)))
}

func TestPrepare_HeightOnlyAspect(t *testing.T) {
	dir := t.TempDir()
	points := trees(crs.EPSG(3006), [3]interface{}{orb.Point{0, 0}, nil, 8.0})
	out, _, err := run(t, New(dir, nil), map[string]string{
		ParamVegPoints:        writeLayer(t, dir, "trees.geojson", points),
		ParamHeightVegField:   "h",
		ParamVegetationAspect: "0.5",
		ParamVegHeightField:   "TREE_H",
	})
	require.NoError(t, err)

	got, err := vector.Read(out[OutputVegetation])
	require.NoError(t, err)
	require.Len(t, got.Features, 1)
	assert.Equal(t, 8.0, got.Features[0].Properties["TREE_H"])
	b := got.Features[0].Geometry.Bound()
	assert.InDelta(t, 8, b.Max[0]-b.Min[0], 1e-9)
}

func TestPrepare_Errors(t *testing.T) {
	dir := t.TempDir()
	pointsPath := writeLayer(t, dir, "trees.geojson", trees(crs.EPSG(3006), [3]interface{}{orb.Point{0, 0}, 1.0, 2.0}))
	cdsmPath := writeRaster(t, dir, "cdsm.tif", raster.New(1, 1, [6]float64{0, 1, 0, 1, 0, -1}, crs.EPSG(3006)))

	_, _, err := run(t, New(dir, nil), map[string]string{ParamVegCDSM: cdsmPath, ParamVegPoints: pointsPath, ParamRadiusVegField: "r"})
	assert.ErrorIs(t, err, ErrAmbiguousVegetation)

	_, _, err = run(t, New(dir, nil), map[string]string{ParamVegPoints: pointsPath})
	assert.ErrorIs(t, err, ErrMissingVegetationFields)

	_, _, err = run(t, New(dir, nil), map[string]string{ParamVegPoints: pointsPath, ParamRadiusVegField: "crown"})
	assert.ErrorContains(t, err, `no field "crown"`)

	_, _, err = run(t, New(dir, nil), map[string]string{ParamVegPoints: pointsPath, ParamRadiusVegField: "r", ParamVegetationAspect: "0"})
	assert.ErrorContains(t, err, "aspect")
}

func TestPrepare_FootprintWithoutDSM(t *testing.T) {
	dir := t.TempDir()
	out, rec, err := run(t, New(dir, nil), map[string]string{
		ParamBuildFootprint: writeLayer(t, dir, "fp.geojson", footprints(crs.EPSG(3006), rect(0, 0, 1, 1))),
		OutputBuildings:     filepath.Join(dir, "b.file"),
	})
	require.NoError(t, err)
	assert.Equal(t, algorithm.Outputs{OutputBuildings: "", OutputVegetation: ""}, out)
	assert.Len(t, rec.Warnings, 1)
	assert.Contains(t, rec.Texts, "Processing finished.")
}
