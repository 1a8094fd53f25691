package vector

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// Dissolve merges the polygons sharing a value of field into one feature per
// value, keeping the attributes of the first feature of each group. Groups
// keep the order in which their values first appear.
func Dissolve(ctx context.Context, l *Layer, field string) (*Layer, error) {
	if !l.HasField(field) {
		return nil, fmt.Errorf("vector: dissolve: no field %q in %s", field, l.Name)
	}
	var order []string
	groups := make(map[string][]*Feature)
	for _, f := range l.Features {
		k := groupKey(f.Properties[field])
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], f)
	}

	out := &Layer{Name: l.Name, Kind: Polygon, CRS: l.CRS, Fields: append([]Field(nil), l.Fields...)}
	for _, k := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		members := groups[k]
		var polys []orb.Polygon
		for _, f := range members {
			switch g := f.Geometry.(type) {
			case orb.Polygon:
				polys = append(polys, g)
			case orb.MultiPolygon:
				polys = append(polys, g...)
			}
		}
		if len(polys) == 0 {
			continue
		}

		var merged orb.MultiPolygon
		if gridCells(polys) {
			merged = mergeEdges(polys)
		} else {
			merged = unionAll(polys)
		}
		if len(merged) == 0 {
			continue
		}
		f := NewFeature(len(out.Features), orb.Geometry(merged))
		if len(merged) == 1 {
			f.Geometry = merged[0]
		}
		for name, v := range members[0].Properties {
			f.Properties[name] = v
		}
		out.Features = append(out.Features, f)
	}
	return out, nil
}

func groupKey(v interface{}) string {
	if v == nil {
		return "\x00null"
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// gridCells reports whether all polygons are equally sized, axis aligned
// rectangles, so shared boundaries are made of identical edges.
func gridCells(polys []orb.Polygon) bool {
	var w, h float64
	for i, p := range polys {
		if len(p) != 1 {
			return false
		}
		r := p[0]
		if r.Closed() {
			r = r[:len(r)-1]
		}
		if len(r) != 4 {
			return false
		}
		b := r.Bound()
		for _, pt := range r {
			if (pt[0] != b.Min[0] && pt[0] != b.Max[0]) || (pt[1] != b.Min[1] && pt[1] != b.Max[1]) {
				return false
			}
		}
		if i == 0 {
			w, h = b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
			continue
		}
		if math.Abs(b.Max[0]-b.Min[0]-w) > w*1e-9 || math.Abs(b.Max[1]-b.Min[1]-h) > h*1e-9 {
			return false
		}
	}
	return true
}

type edge struct {
	a, b orb.Point
}

// mergeEdges removes boundaries shared by neighbouring polygons and chains
// the remaining edges into rings.
func mergeEdges(polys []orb.Polygon) orb.MultiPolygon {
	live := make(map[edge]int)
	for _, p := range polys {
		for i, r := range p {
			r = orient(closeRing(r), i == 0)
			for k := 0; k+1 < len(r); k++ {
				e := edge{r[k], r[k+1]}
				rev := edge{e.b, e.a}
				if live[rev] > 0 {
					live[rev]--
					if live[rev] == 0 {
						delete(live, rev)
					}
					continue
				}
				live[e]++
			}
		}
	}

	outgoing := make(map[orb.Point][]orb.Point)
	var starts []orb.Point
	for e, n := range live {
		for i := 0; i < n; i++ {
			outgoing[e.a] = append(outgoing[e.a], e.b)
		}
		starts = append(starts, e.a)
	}
	// deterministic output regardless of map order
	sort.Slice(starts, func(i, j int) bool { return lessPoint(starts[i], starts[j]) })

	var shells []orb.Polygon
	var holes []orb.Ring
	for _, s := range starts {
		for len(outgoing[s]) > 0 {
			ring := traceRing(s, outgoing)
			if len(ring) < 4 {
				continue
			}
			ring = dropCollinear(ring)
			switch ring.Orientation() {
			case orb.CCW:
				shells = append(shells, orb.Polygon{ring})
			case orb.CW:
				holes = append(holes, ring)
			}
		}
	}
	return placeHoles(shells, holes)
}

// traceRing follows outgoing edges from start, always taking the sharpest
// left turn, until it is back at start. Used edges are consumed.
func traceRing(start orb.Point, outgoing map[orb.Point][]orb.Point) orb.Ring {
	ring := orb.Ring{start}
	prev := start
	cur := takeNext(start, orb.Point{}, false, outgoing)
	for {
		ring = append(ring, cur)
		if cur == start || len(outgoing[cur]) == 0 {
			return ring
		}
		next := takeNext(cur, prev, true, outgoing)
		prev, cur = cur, next
	}
}

func takeNext(at, from orb.Point, haveFrom bool, outgoing map[orb.Point][]orb.Point) orb.Point {
	cands := outgoing[at]
	best := 0
	if haveFrom && len(cands) > 1 {
		in := math.Atan2(at[1]-from[1], at[0]-from[0])
		bestTurn := math.Inf(-1)
		for i, c := range cands {
			turn := math.Atan2(c[1]-at[1], c[0]-at[0]) - in
			for turn <= -math.Pi {
				turn += 2 * math.Pi
			}
			for turn > math.Pi {
				turn -= 2 * math.Pi
			}
			if turn > bestTurn {
				best, bestTurn = i, turn
			}
		}
	}
	next := cands[best]
	outgoing[at] = append(cands[:best:best], cands[best+1:]...)
	if len(outgoing[at]) == 0 {
		delete(outgoing, at)
	}
	return next
}

// dropCollinear removes vertices lying on a straight run of the ring.
func dropCollinear(r orb.Ring) orb.Ring {
	b := r.Bound()
	tol := 1e-9 * math.Max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
	out := simplify.DouglasPeucker(tol).Ring(r.Clone())
	if len(out) < 4 {
		return r
	}
	return out
}

func lessPoint(a, b orb.Point) bool {
	if a[1] != b[1] {
		return a[1] > b[1]
	}
	return a[0] < b[0]
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) == 0 || r[0] == r[len(r)-1] {
		return r
	}
	return append(r.Clone(), r[0])
}

// placeHoles puts each hole in the smallest shell containing all its vertices.
func placeHoles(shells []orb.Polygon, holes []orb.Ring) orb.MultiPolygon {
	areas := make([]float64, len(shells))
	for i, s := range shells {
		areas[i] = math.Abs(planar.Area(s[0]))
	}
	for _, h := range holes {
		best := -1
		for i, s := range shells {
			inside := true
			for _, p := range h {
				if !planar.RingContains(s[0], p) {
					inside = false
					break
				}
			}
			if inside && (best < 0 || areas[i] < areas[best]) {
				best = i
			}
		}
		if best >= 0 {
			shells[best] = append(shells[best], h)
		}
	}
	sort.SliceStable(shells, func(i, j int) bool {
		return lessPoint(shells[i][0].Bound().Min, shells[j][0].Bound().Min)
	})
	return orb.MultiPolygon(shells)
}

type indexed struct {
	geom.Polygon
	i int
}

// unionAll merges arbitrary polygons. Polygons whose extents touch are
// clustered through an R-tree and each cluster is unioned.
func unionAll(polys []orb.Polygon) orb.MultiPolygon {
	tree := rtree.NewTree(25, 50)
	items := make([]indexed, len(polys))
	for i, p := range polys {
		items[i] = indexed{Polygon: toGeom(p), i: i}
		tree.Insert(items[i])
	}

	cluster := make([]int, len(polys))
	for i := range cluster {
		cluster[i] = -1
	}
	var clusters [][]int
	for i := range items {
		if cluster[i] >= 0 {
			continue
		}
		id := len(clusters)
		queue := []int{i}
		cluster[i] = id
		var members []int
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			members = append(members, j)
			for _, s := range tree.SearchIntersect(items[j].Bounds()) {
				k := s.(indexed).i
				if cluster[k] < 0 {
					cluster[k] = id
					queue = append(queue, k)
				}
			}
		}
		clusters = append(clusters, members)
	}

	var out orb.MultiPolygon
	for _, members := range clusters {
		var u geom.Polygonal = items[members[0]].Polygon
		for _, m := range members[1:] {
			u = u.Union(items[m].Polygon)
		}
		for _, p := range u.Polygons() {
			out = append(out, fromGeom(p)...)
		}
	}
	return out
}

func toGeom(p orb.Polygon) geom.Polygon {
	out := make(geom.Polygon, 0, len(p))
	for _, r := range p {
		r = closeRing(r)
		path := make(geom.Path, 0, len(r))
		for _, pt := range r[:len(r)-1] {
			path = append(path, geom.Point{X: pt[0], Y: pt[1]})
		}
		out = append(out, path)
	}
	return out
}

// fromGeom splits a ring soup into polygons: rings nested in an even number
// of other rings are shells, the others holes.
func fromGeom(p geom.Polygon) orb.MultiPolygon {
	rings := make([]orb.Ring, 0, len(p))
	for _, path := range p {
		if len(path) < 3 {
			continue
		}
		r := make(orb.Ring, 0, len(path)+1)
		for _, pt := range path {
			r = append(r, orb.Point{pt.X, pt.Y})
		}
		rings = append(rings, closeRing(r))
	}
	var shells []orb.Polygon
	var holes []orb.Ring
	for i, r := range rings {
		depth := 0
		for j, o := range rings {
			if i != j && planar.RingContains(o, r[0]) {
				depth++
			}
		}
		if depth%2 == 0 {
			shells = append(shells, orb.Polygon{orient(r, true)})
		} else {
			holes = append(holes, orient(r, false))
		}
	}
	return placeHoles(shells, holes)
}
