package raster

import (
	"errors"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// gridXYZ exposes a grid to plotter.HeatMap. Rows are flipped so Y increases.
type gridXYZ struct {
	g *Grid
}

func (p gridXYZ) Dims() (c, r int) { return p.g.Cols, p.g.Rows }

func (p gridXYZ) Z(c, r int) float64 {
	v := p.g.At(c, p.g.Rows-1-r)
	if !p.g.Valid(v) {
		return math.NaN()
	}
	return v
}

func (p gridXYZ) X(c int) float64 {
	x, _ := p.g.PixelCenter(c, 0)
	return x
}

func (p gridXYZ) Y(r int) float64 {
	_, y := p.g.PixelCenter(0, p.g.Rows-1-r)
	return y
}

// SavePreview renders g as a heat map PNG.
func SavePreview(path, title string, g *Grid) error {
	valid := g.ValidValues()
	if len(valid) == 0 {
		return errors.New("raster: preview of a grid without valid cells")
	}
	if g.GeoTransform[2] != 0 || g.GeoTransform[4] != 0 {
		return errors.New("raster: preview of a rotated grid")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	hm := plotter.NewHeatMap(gridXYZ{g: g}, palette.Heat(32, 1))
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)
	return p.Save(8*vg.Inch, 8*vg.Inch, path)
}
