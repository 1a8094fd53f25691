package raster

import (
	"context"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/godeepar/umep/crs"
)

// edgeSamples is the number of points taken along each grid edge when
// projecting the extent.
const edgeSamples = 21

// Warp reprojects g to target with nearest neighbour resampling. The output
// resolution keeps the number of pixels along the extent diagonal.
func Warp(ctx context.Context, g *Grid, target crs.CRS) (*Grid, error) {
	if g.CRS.Equal(target) {
		return g.Clone(), nil
	}
	fwd, err := crs.NewTransform(g.CRS, target)
	if err != nil {
		return nil, fmt.Errorf("raster: warp: %w", err)
	}
	inv, err := crs.NewTransform(target, g.CRS)
	if err != nil {
		return nil, fmt.Errorf("raster: warp: %w", err)
	}

	bound, err := projectedBound(g, fwd)
	if err != nil {
		return nil, err
	}
	diagPixels := math.Hypot(float64(g.Cols), float64(g.Rows))
	res := math.Hypot(bound.Right()-bound.Left(), bound.Top()-bound.Bottom()) / diagPixels
	if res <= 0 || math.IsNaN(res) {
		return nil, fmt.Errorf("raster: warp: degenerate extent %v", bound)
	}
	cols := int(math.Ceil((bound.Right() - bound.Left()) / res))
	rows := int(math.Ceil((bound.Top() - bound.Bottom()) / res))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	out := New(cols, rows, [6]float64{bound.Left(), res, 0, bound.Top(), 0, -res}, target)
	out.SetNoData(NoDataSentinel)
	if g.HasNoData {
		out.SetNoData(g.NoData)
	}
	for r := 0; r < rows; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for c := 0; c < cols; c++ {
			x, y := out.PixelCenter(c, r)
			sx, sy, err := inv.Point(x, y)
			if err != nil {
				out.Set(c, r, out.NoData)
				continue
			}
			pc, pr, err := g.Pixel(sx, sy)
			if err != nil {
				return nil, err
			}
			col, row := int(math.Floor(pc)), int(math.Floor(pr))
			if col < 0 || row < 0 || col >= g.Cols || row >= g.Rows {
				out.Set(c, r, out.NoData)
				continue
			}
			v := g.At(col, row)
			if !g.Valid(v) {
				v = out.NoData
			}
			out.Set(c, r, v)
		}
	}
	return out, nil
}

func projectedBound(g *Grid, t *crs.Transformer) (orb.Bound, error) {
	b := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	add := func(col, row float64) error {
		x, y := g.Point(col, row)
		px, py, err := t.Point(x, y)
		if err != nil {
			return fmt.Errorf("raster: warp: projecting extent: %w", err)
		}
		b = b.Extend(orb.Point{px, py})
		return nil
	}
	for i := 0; i < edgeSamples; i++ {
		f := float64(i) / float64(edgeSamples-1)
		for _, p := range [][2]float64{
			{f * float64(g.Cols), 0},
			{f * float64(g.Cols), float64(g.Rows)},
			{0, f * float64(g.Rows)},
			{float64(g.Cols), f * float64(g.Rows)},
		} {
			if err := add(p[0], p[1]); err != nil {
				return b, err
			}
		}
	}
	return b, nil
}
