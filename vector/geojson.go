package vector

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"

	"github.com/godeepar/umep/crs"
)

// ReadGeoJSON loads a FeatureCollection. Without a crs member the layer is WGS 84.
func ReadGeoJSON(path string) (*Layer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("vector: %s: %w", path, err)
	}

	l := &Layer{Name: layerName(path), CRS: crs.EPSG(4326)}
	if name := crsName(fc.CRS); name != "" {
		c, err := crs.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("vector: %s: %w", path, err)
		}
		l.CRS = c
	}
	for i, gf := range fc.Features {
		f := NewFeature(i, nil)
		if gf.Geometry != nil {
			g, err := toOrb(gf.Geometry)
			if err != nil {
				return nil, fmt.Errorf("vector: %s feature %d: %w", path, i, err)
			}
			f.Geometry = g
			if l.Kind == Unknown {
				l.Kind = kindOf(g)
			}
		}
		keys := make([]string, 0, len(gf.Properties))
		for k := range gf.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := gf.Properties[k]
			switch v.(type) {
			case float64, nil:
				l.AddField(Field{Name: k, Kind: Number})
			case string:
				l.AddField(Field{Name: k, Kind: String})
			default:
				l.AddField(Field{Name: k, Kind: String})
				v = fmt.Sprint(v)
			}
			f.Properties[k] = v
		}
		l.Features = append(l.Features, f)
	}
	return l, nil
}

func crsName(m map[string]interface{}) string {
	props, ok := m["properties"].(map[string]interface{})
	if !ok {
		return ""
	}
	name, _ := props["name"].(string)
	return name
}

// WriteGeoJSON stores the layer as a FeatureCollection, with a named crs
// member when the layer is not WGS 84.
func WriteGeoJSON(path string, l *Layer) error {
	fc := geojson.NewFeatureCollection()
	if l.CRS.EPSG != 0 && l.CRS.EPSG != 4326 {
		fc.CRS = map[string]interface{}{
			"type":       "name",
			"properties": map[string]interface{}{"name": fmt.Sprintf("urn:ogc:def:crs:EPSG::%d", l.CRS.EPSG)},
		}
	}
	for _, f := range l.Features {
		var g *geojson.Geometry
		if f.Geometry != nil {
			var err error
			if g, err = fromOrb(f.Geometry); err != nil {
				return fmt.Errorf("vector: feature %d: %w", f.ID, err)
			}
		}
		gf := geojson.NewFeature(g)
		gf.ID = f.ID
		for _, field := range l.Fields {
			gf.SetProperty(field.Name, f.Properties[field.Name])
		}
		fc.AddFeature(gf)
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func layerName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func toOrb(g *geojson.Geometry) (orb.Geometry, error) {
	switch g.Type {
	case geojson.GeometryPoint:
		if len(g.Point) < 2 {
			return nil, fmt.Errorf("short point")
		}
		return orb.Point{g.Point[0], g.Point[1]}, nil
	case geojson.GeometryMultiPoint:
		mp := make(orb.MultiPoint, 0, len(g.MultiPoint))
		for _, p := range g.MultiPoint {
			mp = append(mp, orb.Point{p[0], p[1]})
		}
		return mp, nil
	case geojson.GeometryPolygon:
		return toPolygon(g.Polygon), nil
	case geojson.GeometryMultiPolygon:
		mp := make(orb.MultiPolygon, 0, len(g.MultiPolygon))
		for _, p := range g.MultiPolygon {
			mp = append(mp, toPolygon(p))
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("unsupported geometry %s", g.Type)
	}
}

func toPolygon(rings [][][]float64) orb.Polygon {
	p := make(orb.Polygon, 0, len(rings))
	for _, r := range rings {
		ring := make(orb.Ring, 0, len(r))
		for _, c := range r {
			ring = append(ring, orb.Point{c[0], c[1]})
		}
		p = append(p, ring)
	}
	return p
}

func fromOrb(g orb.Geometry) (*geojson.Geometry, error) {
	switch g := g.(type) {
	case orb.Point:
		return geojson.NewPointGeometry([]float64{g[0], g[1]}), nil
	case orb.MultiPoint:
		coords := make([][]float64, len(g))
		for i, p := range g {
			coords[i] = []float64{p[0], p[1]}
		}
		return geojson.NewMultiPointGeometry(coords...), nil
	case orb.Polygon:
		return geojson.NewPolygonGeometry(fromPolygon(g)), nil
	case orb.MultiPolygon:
		polys := make([][][][]float64, len(g))
		for i, p := range g {
			polys[i] = fromPolygon(p)
		}
		return geojson.NewMultiPolygonGeometry(polys...), nil
	default:
		return nil, fmt.Errorf("unsupported geometry %T", g)
	}
}

// fromPolygon closes rings and orients them counter clockwise outside, clockwise inside.
func fromPolygon(p orb.Polygon) [][][]float64 {
	out := make([][][]float64, 0, len(p))
	for i, r := range p {
		r = orient(r, i == 0)
		coords := make([][]float64, 0, len(r)+1)
		for _, c := range r {
			coords = append(coords, []float64{c[0], c[1]})
		}
		if len(r) > 0 && !r.Closed() {
			coords = append(coords, []float64{r[0][0], r[0][1]})
		}
		out = append(out, coords)
	}
	return out
}

// orient returns r counter clockwise when ccw is set, clockwise otherwise.
func orient(r orb.Ring, ccw bool) orb.Ring {
	if len(r) < 3 {
		return r
	}
	want := orb.CW
	if ccw {
		want = orb.CCW
	}
	if r.Orientation() == want || r.Orientation() == 0 {
		return r
	}
	rev := r.Clone()
	rev.Reverse()
	return rev
}
