package vector

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// FixGeometries returns a copy of l with repaired polygons: rings closed,
// repeated vertices removed, rings with fewer than three distinct vertices
// or no area dropped, shells counter clockwise and holes clockwise.
// Self-intersecting polygons are split into valid parts. Features left
// without geometry are removed.
func FixGeometries(l *Layer) *Layer {
	out := l.Clone()
	out.Features = out.Features[:0]
	for _, f := range l.Clone().Features {
		g := fixGeometry(f.Geometry)
		if g == nil {
			continue
		}
		f.Geometry = g
		out.Features = append(out.Features, f)
	}
	return out
}

func fixGeometry(g orb.Geometry) orb.Geometry {
	var parts orb.MultiPolygon
	switch g := g.(type) {
	case orb.Point, orb.MultiPoint:
		return g
	case orb.Polygon:
		parts = fixPolygon(g)
	case orb.MultiPolygon:
		for _, p := range g {
			parts = append(parts, fixPolygon(p)...)
		}
	default:
		return nil
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	return parts
}

// fixPolygon cleans the rings of p. A polygon with crossing rings is split
// into the valid parts it encloses.
func fixPolygon(p orb.Polygon) orb.MultiPolygon {
	var rings orb.Polygon
	crossed := false
	for i, r := range p {
		fixed := cleanRing(r)
		switch {
		case fixed == nil:
		case selfIntersects(fixed):
			crossed = true
			rings = append(rings, fixed)
			continue
		case planar.Area(fixed) != 0:
			rings = append(rings, fixed)
			continue
		}
		if i == 0 {
			return nil
		}
	}
	if len(rings) == 0 {
		return nil
	}
	if crossed {
		return resolveCrossings(rings)
	}
	for i := range rings {
		rings[i] = orient(rings[i], i == 0)
	}
	return orb.MultiPolygon{rings}
}

// cleanRing drops repeated vertices and closes the ring. Rings with fewer
// than three distinct vertices give nil.
func cleanRing(r orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(r)+1)
	for _, p := range r {
		if len(out) > 0 && out[len(out)-1].Equal(p) {
			continue
		}
		out = append(out, p)
	}
	if len(out) > 1 && out[0].Equal(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	if len(out) < 3 {
		return nil
	}
	return append(out, out[0])
}

// selfIntersects reports whether two non adjacent edges of the closed ring
// r cross or touch.
func selfIntersects(r orb.Ring) bool {
	n := len(r) - 1
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsMeet(r[i], r[i+1], r[j], r[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsMeet(a, b, c, d orb.Point) bool {
	d1, d2 := cross(c, d, a), cross(c, d, b)
	d3, d4 := cross(a, b, c), cross(a, b, d)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(c, d, a)) || (d2 == 0 && onSegment(c, d, b)) ||
		(d3 == 0 && onSegment(a, b, c)) || (d4 == 0 && onSegment(a, b, d))
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

// resolveCrossings clips p against a rectangle enclosing it. The clipper
// splits edges where they cross and keeps the area inside under the even
// odd rule, which leaves a bowtie as its two triangles.
func resolveCrossings(p orb.Polygon) orb.MultiPolygon {
	b := p.Bound()
	pad := b.Max[0] - b.Min[0] + b.Max[1] - b.Min[1] + 1
	frame := geom.Polygon{{
		{X: b.Min[0] - pad, Y: b.Min[1] - pad},
		{X: b.Max[0] + pad, Y: b.Min[1] - pad},
		{X: b.Max[0] + pad, Y: b.Max[1] + pad},
		{X: b.Min[0] - pad, Y: b.Max[1] + pad},
	}}
	var out orb.MultiPolygon
	for _, part := range toGeom(p).Intersection(frame).Polygons() {
		var paths geom.Polygon
		for _, path := range part {
			paths = append(paths, splitPinched(path)...)
		}
		for _, q := range fromGeom(paths) {
			if planar.Area(q) > 0 {
				out = append(out, q)
			}
		}
	}
	return out
}

// splitPinched cuts a path visiting a vertex twice into simple loops.
func splitPinched(path geom.Path) []geom.Path {
	if len(path) > 1 && path[0] == path[len(path)-1] {
		path = path[:len(path)-1]
	}
	var loops []geom.Path
	var stack geom.Path
	at := make(map[geom.Point]int)
	for _, pt := range path {
		if i, ok := at[pt]; ok {
			loop := append(geom.Path(nil), stack[i:]...)
			for _, q := range loop[1:] {
				delete(at, q)
			}
			stack = stack[:i+1]
			if len(loop) >= 3 {
				loops = append(loops, loop)
			}
			continue
		}
		at[pt] = len(stack)
		stack = append(stack, pt)
	}
	if len(stack) >= 3 {
		loops = append(loops, stack)
	}
	return loops
}
