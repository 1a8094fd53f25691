package vector

import (
	"context"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/godeepar/umep/raster"
)

// ZonalMedian stores in field the median of the cells of g whose centres lie
// inside each polygon. When at most one centre falls inside, every cell
// overlapping the polygon is used instead. Polygons without cells get NULL.
// g must be in the CRS of l.
func ZonalMedian(ctx context.Context, l *Layer, g *raster.Grid, field string) (*Layer, error) {
	out := l.Clone()
	out.AddField(Field{Name: field, Kind: Number})
	for _, f := range out.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var values []float64
		switch geo := f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
			values = centreValues(g, geo)
			if len(values) <= 1 {
				if overlap := overlapValues(g, geo); len(overlap) > 0 {
					values = overlap
				}
			}
		}
		if len(values) == 0 {
			f.Properties[field] = nil
			continue
		}
		f.Properties[field] = median(values)
	}
	return out, nil
}

// window returns the cell range covering b, clipped to the grid.
func window(g *raster.Grid, b orb.Bound) (c0, r0, c1, r1 int) {
	c0, r0 = g.Cols, g.Rows
	c1, r1 = -1, -1
	for _, p := range []orb.Point{b.Min, b.Max, {b.Min[0], b.Max[1]}, {b.Max[0], b.Min[1]}} {
		c, r, err := g.Pixel(p[0], p[1])
		if err != nil {
			return 0, 0, -1, -1
		}
		ci, ri := int(math.Floor(c)), int(math.Floor(r))
		c0, c1 = min(c0, ci), max(c1, ci)
		r0, r1 = min(r0, ri), max(r1, ri)
	}
	return max(c0, 0), max(r0, 0), min(c1, g.Cols-1), min(r1, g.Rows-1)
}

func centreValues(g *raster.Grid, geo orb.Geometry) []float64 {
	c0, r0, c1, r1 := window(g, geo.Bound())
	var values []float64
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			v := g.At(c, r)
			if !g.Valid(v) {
				continue
			}
			x, y := g.PixelCenter(c, r)
			if contains(geo, orb.Point{x, y}) {
				values = append(values, v)
			}
		}
	}
	return values
}

func contains(geo orb.Geometry, p orb.Point) bool {
	switch geo := geo.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geo, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geo, p)
	}
	return false
}

// overlapValues collects the cells sharing some area with the polygon.
func overlapValues(g *raster.Grid, geo orb.Geometry) []float64 {
	var target geom.Polygon
	switch geo := geo.(type) {
	case orb.Polygon:
		target = toGeom(geo)
	case orb.MultiPolygon:
		for _, p := range geo {
			target = append(target, toGeom(p)...)
		}
	}
	c0, r0, c1, r1 := window(g, geo.Bound())
	var values []float64
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			v := g.At(c, r)
			if !g.Valid(v) {
				continue
			}
			cell := toGeom(orb.Polygon{cellRing(g, c, r)})
			if isect := cell.Intersection(target); isect != nil && isect.Area() > 0 {
				values = append(values, v)
			}
		}
	}
	return values
}

func median(values []float64) float64 {
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
