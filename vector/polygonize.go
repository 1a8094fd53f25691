package vector

import (
	"github.com/paulmach/orb"

	"github.com/godeepar/umep/raster"
)

// PixelsToPolygons turns every valid cell of g into a square polygon
// carrying the cell value in field.
func PixelsToPolygons(g *raster.Grid, field string) *Layer {
	l := &Layer{Name: "pixels", Kind: Polygon, CRS: g.CRS, Fields: []Field{{Name: field, Kind: Number}}}
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			v := g.At(c, r)
			if !g.Valid(v) {
				continue
			}
			f := NewFeature(len(l.Features), orb.Polygon{orient(cellRing(g, c, r), true)})
			f.Properties[field] = v
			l.Features = append(l.Features, f)
		}
	}
	return l
}

func cellRing(g *raster.Grid, c, r int) orb.Ring {
	corner := func(dc, dr int) orb.Point {
		x, y := g.Point(float64(c+dc), float64(r+dr))
		return orb.Point{x, y}
	}
	return orb.Ring{corner(0, 0), corner(0, 1), corner(1, 1), corner(1, 0), corner(0, 0)}
}
