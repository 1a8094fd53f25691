package raster

import (
	"errors"
	"fmt"
	"os"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/godeepar/umep/crs"
)

const bandVar = "band"

// WriteNetCDF stores g as a classic NetCDF file with x/y coordinate variables.
func WriteNetCDF(path string, g *Grid) error {
	gt := g.GeoTransform
	if gt[2] != 0 || gt[4] != 0 {
		return errors.New("raster: rotated grids cannot be written as NetCDF")
	}
	// always start from an empty file
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("raster: %w", err)
	}

	xs := make([]float64, g.Cols)
	for c := range xs {
		xs[c], _ = g.PixelCenter(c, 0)
	}
	ys := make([]float64, g.Rows)
	for r := range ys {
		_, ys[r] = g.PixelCenter(0, r)
	}
	fill := float32(NoDataSentinel)
	if g.HasNoData {
		fill = float32(g.NoData)
	}
	values := make([][]float32, g.Rows)
	for r := range values {
		values[r] = make([]float32, g.Cols)
		for c := range values[r] {
			v := g.At(c, r)
			if !g.Valid(v) {
				values[r][c] = fill
				continue
			}
			values[r][c] = float32(v)
		}
	}

	xAttrs, err := util.NewOrderedMap([]string{"units"}, map[string]interface{}{"units": "m"})
	if err != nil {
		return err
	}
	yAttrs, err := util.NewOrderedMap([]string{"units"}, map[string]interface{}{"units": "m"})
	if err != nil {
		return err
	}
	bandAttrs, err := util.NewOrderedMap(
		[]string{"_FillValue", "epsg", "geotransform"},
		map[string]interface{}{
			"_FillValue":   fill,
			"epsg":         int32(g.CRS.EPSG),
			"geotransform": gt[:],
		})
	if err != nil {
		return err
	}
	if err := cw.AddVar("x", api.Variable{Values: xs, Dimensions: []string{"x"}, Attributes: xAttrs}); err != nil {
		return fmt.Errorf("raster: %w", err)
	}
	if err := cw.AddVar("y", api.Variable{Values: ys, Dimensions: []string{"y"}, Attributes: yAttrs}); err != nil {
		return fmt.Errorf("raster: %w", err)
	}
	if err := cw.AddVar(bandVar, api.Variable{Values: values, Dimensions: []string{"y", "x"}, Attributes: bandAttrs}); err != nil {
		return fmt.Errorf("raster: %w", err)
	}
	return cw.Close()
}

// ReadNetCDF loads a grid written by WriteNetCDF.
func ReadNetCDF(path string) (*Grid, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("raster: %w", err)
	}
	defer nc.Close()

	vg, err := nc.GetVarGetter(bandVar)
	if err != nil {
		return nil, fmt.Errorf("raster: %s: %w", path, err)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, err
	}
	rows, ok := v.([][]float32)
	if !ok || len(rows) == 0 {
		return nil, fmt.Errorf("raster: %s: unexpected %T band", path, v)
	}

	g := New(len(rows[0]), len(rows), [6]float64{0, 1, 0, 0, 0, -1}, crs.CRS{})
	attrs := vg.Attributes()
	if a, has := attrs.Get("geotransform"); has {
		if gt, ok := a.([]float64); ok && len(gt) == 6 {
			copy(g.GeoTransform[:], gt)
		}
	}
	if a, has := attrs.Get("epsg"); has {
		if code, ok := a.(int32); ok && code > 0 {
			g.CRS = crs.EPSG(int(code))
		}
	}
	if a, has := attrs.Get("_FillValue"); has {
		if f, ok := a.(float32); ok {
			g.SetNoData(float64(f))
		}
	}
	for r, row := range rows {
		for c, x := range row {
			g.Set(c, r, float64(x))
		}
	}
	return g, nil
}
