package vector

import (
	"fmt"
	"sort"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/godeepar/umep/crs"
)

// s2TokenLength is the token prefix kept for a layer covering.
const s2TokenLength = 8

// S2Covering returns the sorted, distinct S2 tokens of the cells covering the
// extent of the layer. Tokens are cut to 8 characters.
func S2Covering(l *Layer) ([]string, error) {
	if len(l.Features) == 0 {
		return nil, nil
	}
	b := l.Bound()
	corners := []orb.Point{b.Min, {b.Max[0], b.Min[1]}, b.Max, {b.Min[0], b.Max[1]}}
	pts := make([]s2.Point, 0, len(corners))
	for _, c := range corners {
		lon, lat, err := crs.To4326(l.CRS, c[0], c[1])
		if err != nil {
			return nil, fmt.Errorf("vector: s2 covering of %s: %w", l.Name, err)
		}
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon)))
	}

	var cells []s2.CellID
	if b.Min[0] == b.Max[0] || b.Min[1] == b.Max[1] {
		// a point or a line has no loop, cover its ends
		for _, p := range []s2.Point{pts[0], pts[2]} {
			cells = append(cells, s2.CellIDFromLatLng(s2.LatLngFromPoint(p)))
		}
	} else {
		cells = s2.LoopFromPoints(pts).CellUnionBound()
	}

	seen := make(map[string]bool)
	var tokens []string
	for _, cellid := range cells {
		token := cellid.ToToken()
		if len(token) > s2TokenLength {
			token = token[:s2TokenLength]
		}
		if seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens, nil
}

// AddS2Tokens stores in field the token of the level cell holding the
// centroid of each feature.
func AddS2Tokens(l *Layer, field string, level int) (*Layer, error) {
	if level < 0 || level > s2.MaxLevel {
		return nil, fmt.Errorf("vector: s2 level %d out of range 0-%d", level, s2.MaxLevel)
	}
	out := l.Clone()
	out.AddField(Field{Name: field, Kind: String})
	for _, f := range out.Features {
		if f.Geometry == nil {
			f.Properties[field] = nil
			continue
		}
		c := centroid(f.Geometry)
		lon, lat, err := crs.To4326(out.CRS, c[0], c[1])
		if err != nil {
			return nil, fmt.Errorf("vector: s2 token of feature %d: %w", f.ID, err)
		}
		id := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(level)
		f.Properties[field] = id.ToToken()
	}
	return out, nil
}

func centroid(g orb.Geometry) orb.Point {
	switch g := g.(type) {
	case orb.Point:
		return g
	case orb.Polygon, orb.MultiPolygon:
		c, area := planar.CentroidArea(g)
		if area != 0 {
			return c
		}
	}
	return g.Bound().Center()
}
