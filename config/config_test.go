package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "run.yaml", `
log_level: warn
debug: true
metrics_file: /tmp/umep.prom
tmp_dir: /data/tmp
params:
  suewsanalyzer:
    raster_dir: ./Output
    stat_type: 3
    threshold: 55.5
`)
	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", r.LogLevel)
	assert.True(t, r.Debug)
	assert.Equal(t, "/tmp/umep.prom", r.MetricsFile)
	assert.Equal(t, "/data/tmp", r.TmpDir)
	assert.Equal(t, map[string]string{"raster_dir": "./Output", "stat_type": "3", "threshold": "55.5"}, r.Params["suewsanalyzer"])
	assert.Equal(t, []string{"suewsanalyzer"}, r.Algorithms())
}

func TestLoad_Defaults(t *testing.T) {
	r, err := Load(writeFile(t, "run.yaml", "debug: false\n"))
	require.NoError(t, err)
	assert.Equal(t, os.TempDir(), r.TmpDir)
	assert.NotNil(t, r.Params)
	assert.Empty(t, r.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "run.yaml", "colour: red\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = Load(writeFile(t, "run.yaml", "params: [1, 2]\n"))
	assert.Error(t, err)
}

func TestRun_ParamsFor(t *testing.T) {
	r := Default()
	r.Params["urockprepare"] = map[string]string{"veg_cdsm": "cdsm.tif", "vegetation_aspect": "0.75"}

	got, err := r.ParamsFor("urockprepare", []string{"vegetation_aspect=0.5", "build_out = b.shp"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"veg_cdsm":          "cdsm.tif",
		"vegetation_aspect": "0.5",
		"build_out":         " b.shp",
	}, got)
	assert.Equal(t, "0.75", r.Params["urockprepare"]["vegetation_aspect"], "file values untouched")

	_, err = r.ParamsFor("urockprepare", []string{"novalue"})
	assert.Error(t, err)
	_, err = r.ParamsFor("urockprepare", []string{"=x"})
	assert.Error(t, err)

	empty, err := r.ParamsFor("other", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestVectorOutput(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		want     string
		wantWarn bool
	}{
		{"empty", "", "/tmp/x/veg_vector.geojson", false},
		{"generic file", "/out/anything.file", "/tmp/x/veg_vector.geojson", false},
		{"geojson", "/out/veg.geojson", "/out/veg.geojson", false},
		{"shapefile", "/out/veg.SHP", "/out/veg.SHP", false},
		{"geopackage", "/out/v1.2/veg.gpkg", "/out/v1.2/veg.geojson", true},
		{"no extension", "/out/veg", "/out/veg.geojson", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warning := VectorOutput(tt.path, "/tmp/x", "veg_vector")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantWarn, warning != "")
		})
	}
}

func TestRasterPaths(t *testing.T) {
	assert.Equal(t, "out/stat.tif", RasterOutput("out/stat"))
	assert.Equal(t, "out/stat.nc", RasterOutput("out/stat.nc"))
	assert.Equal(t, "", RasterOutput(""))
	assert.Equal(t, "out/stat_threshold.tif", Sibling("out/stat.tif", "_threshold"))
}

func TestReadNamelist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "RunControl.nml")
	require.NoError(t, os.WriteFile(path, []byte(`&RunControl
CBLUse = 0 ! no CBL
FileCode = 'Kc'
FileInputPath = "./Input/"
FileOutputPath = './Output!/' ! bang inside quotes
ResolutionFilesOut = 3600,
/
`), 0o644))

	nl, err := ReadNamelist(path)
	require.NoError(t, err)
	v, ok := nl.Get("filecode")
	require.True(t, ok)
	assert.Equal(t, "Kc", v)
	v, _ = nl.Get("CBLUSE")
	assert.Equal(t, "0", v)
	v, _ = nl.Get("ResolutionFilesOut")
	assert.Equal(t, "3600", v)
	assert.Equal(t, "./Input/", nl.Groups["runcontrol"]["fileinputpath"])

	out, err := nl.OutputPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Output!"), out)
}

func TestNamelist_OutputPathMissing(t *testing.T) {
	nl, err := ReadNamelist(writeFile(t, "a.nml", "&RunControl\nFileCode = 'Kc'\n/\n"))
	require.NoError(t, err)
	_, err = nl.OutputPath()
	assert.Error(t, err)

	_, err = ReadNamelist(writeFile(t, "b.nml", "&RunControl\nnonsense\n/\n"))
	assert.Error(t, err)
}
