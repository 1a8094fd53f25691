// Package raster holds single band grids and the raster operations the
// umep tools run on them.
package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/godeepar/umep/crs"
	"github.com/godeepar/umep/geotiff"
)

// NoDataSentinel marks masked or missing cells in written outputs.
const NoDataSentinel = -9999.0

// Grid is a north up raster band with its georeferencing.
type Grid struct {
	Cols int
	Rows int
	// Data is row major.
	Data         []float64
	GeoTransform [6]float64
	CRS          crs.CRS
	HasNoData    bool
	NoData       float64

	// keys of the GeoTIFF this grid was read from, written back unchanged
	keys *geotiff.GeoKeys
}

// New returns a zero filled grid.
func New(cols, rows int, gt [6]float64, c crs.CRS) *Grid {
	return &Grid{Cols: cols, Rows: rows, Data: make([]float64, cols*rows), GeoTransform: gt, CRS: c}
}

// Like returns a zero filled grid with the size and georeferencing of g.
func Like(g *Grid) *Grid {
	out := New(g.Cols, g.Rows, g.GeoTransform, g.CRS)
	out.keys = g.keys
	return out
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := *g
	out.Data = append([]float64(nil), g.Data...)
	return &out
}

// At returns the value at col, row.
func (g *Grid) At(col, row int) float64 {
	return g.Data[row*g.Cols+col]
}

// Set stores v at col, row.
func (g *Grid) Set(col, row int, v float64) {
	g.Data[row*g.Cols+col] = v
}

// Valid reports whether v is a real value for this grid.
func (g *Grid) Valid(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	return !(g.HasNoData && v == g.NoData)
}

// SetNoData records the no-data value.
func (g *Grid) SetNoData(v float64) {
	g.HasNoData = true
	g.NoData = v
}

// SameShape reports whether both grids have the same dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	return g.Cols == o.Cols && g.Rows == o.Rows
}

// CheckShape returns an error naming both sizes when they differ.
func (g *Grid) CheckShape(o *Grid) error {
	if !g.SameShape(o) {
		return fmt.Errorf("raster: size %dx%d does not match %dx%d", o.Cols, o.Rows, g.Cols, g.Rows)
	}
	return nil
}

// CopyGeoreference takes transform, CRS and GeoTIFF keys from src.
func (g *Grid) CopyGeoreference(src *Grid) {
	g.GeoTransform = src.GeoTransform
	g.CRS = src.CRS
	g.keys = src.keys
}

// Point maps fractional pixel coordinates to map coordinates.
func (g *Grid) Point(col, row float64) (float64, float64) {
	gt := g.GeoTransform
	return gt[0] + col*gt[1] + row*gt[2], gt[3] + col*gt[4] + row*gt[5]
}

// PixelCenter returns the map coordinates of the centre of a cell.
func (g *Grid) PixelCenter(col, row int) (float64, float64) {
	return g.Point(float64(col)+0.5, float64(row)+0.5)
}

// Pixel maps map coordinates to fractional pixel coordinates.
func (g *Grid) Pixel(x, y float64) (float64, float64, error) {
	gt := g.GeoTransform
	det := gt[1]*gt[5] - gt[2]*gt[4]
	if det == 0 {
		return 0, 0, fmt.Errorf("raster: geotransform is not invertible")
	}
	dx, dy := x-gt[0], y-gt[3]
	return (dx*gt[5] - dy*gt[2]) / det, (dy*gt[1] - dx*gt[4]) / det, nil
}

// Bound returns the extent covered by the grid.
func (g *Grid) Bound() orb.Bound {
	b := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, c := range [][2]float64{{0, 0}, {float64(g.Cols), 0}, {0, float64(g.Rows)}, {float64(g.Cols), float64(g.Rows)}} {
		x, y := g.Point(c[0], c[1])
		b = b.Extend(orb.Point{x, y})
	}
	return b
}

// ValidValues returns the values that are not no-data.
func (g *Grid) ValidValues() []float64 {
	out := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if g.Valid(v) {
			out = append(out, v)
		}
	}
	return out
}
