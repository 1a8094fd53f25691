package raster

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/godeepar/umep/crs"
	"github.com/godeepar/umep/geotiff"
)

// Read loads a raster by file extension: GeoTIFF or NetCDF.
func Read(path string) (*Grid, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nc":
		return ReadNetCDF(path)
	default:
		return ReadGeoTIFF(path)
	}
}

// Write stores g by file extension: .nc as NetCDF, anything else as a deflated GeoTIFF.
func Write(path string, g *Grid) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nc":
		return WriteNetCDF(path, g)
	default:
		return WriteGeoTIFF(path, g)
	}
}

// ReadGeoTIFF loads the first band of a GeoTIFF.
func ReadGeoTIFF(path string) (*Grid, error) {
	r, err := geotiff.Read(path)
	if err != nil {
		return nil, fmt.Errorf("raster: %w", err)
	}
	g := &Grid{
		Cols:         r.Width,
		Rows:         r.Height,
		Data:         r.Data,
		GeoTransform: r.GeoTransform,
		HasNoData:    r.HasNoData,
		NoData:       r.NoData,
		keys:         r.Keys,
	}
	if r.EPSG != 0 {
		g.CRS = crs.EPSG(r.EPSG)
	}
	if !r.Georeferenced() {
		g.GeoTransform = [6]float64{0, 1, 0, 0, 0, -1}
	}
	return g, nil
}

// WriteGeoTIFF stores g as a Float32 GeoTIFF with Deflate compression.
func WriteGeoTIFF(path string, g *Grid) error {
	r := &geotiff.Raster{
		Width:        g.Cols,
		Height:       g.Rows,
		Data:         g.Data,
		GeoTransform: g.GeoTransform,
		HasNoData:    g.HasNoData,
		NoData:       g.NoData,
		EPSG:         g.CRS.EPSG,
		Geographic:   g.CRS.Geographic(),
		Keys:         g.keys,
	}
	if g.keys != nil && !g.sourceCRS() {
		// the CRS was replaced after reading, the old keys no longer apply
		r.Keys = nil
	}
	if err := geotiff.Write(path, r, geotiff.Options{Deflate: true}); err != nil {
		return fmt.Errorf("raster: writing %s: %w", path, err)
	}
	return nil
}

// sourceCRS reports whether the stored keys still describe g.CRS.
func (g *Grid) sourceCRS() bool {
	if g.keys == nil {
		return false
	}
	for _, id := range []uint16{3072, 2048} {
		if v, ok := g.keys.Value(id); ok && v > 0 && v < 32767 {
			return int(v) == g.CRS.EPSG
		}
	}
	// user defined CRS, kept as long as nothing assigned a code
	return g.CRS.EPSG == 0
}
