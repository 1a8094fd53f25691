package vector

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	shapes "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/godeepar/umep/crs"
)

// dbfNameLength is the longest field name a dBase header can hold.
const dbfNameLength = 10

// ReadShapefile loads a point or polygon shapefile with its attributes and
// the CRS from the .prj next to it.
func ReadShapefile(path string) (*Layer, error) {
	r, err := shapes.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vector: %w", err)
	}
	defer r.Close()

	l := &Layer{Name: layerName(path)}
	if prj, err := os.ReadFile(strings.TrimSuffix(path, ".shp") + ".prj"); err == nil {
		l.CRS = crs.FromWKT(string(prj))
	}
	fields := r.Fields()
	for _, f := range fields {
		kind := String
		switch f.Fieldtype {
		case 'N', 'F':
			kind = Number
		}
		l.Fields = append(l.Fields, Field{Name: f.String(), Kind: kind})
	}

	for r.Next() {
		n, s := r.Shape()
		g, err := shapeGeometry(s)
		if err != nil {
			return nil, fmt.Errorf("vector: %s record %d: %w", path, n, err)
		}
		f := NewFeature(n, g)
		if l.Kind == Unknown && g != nil {
			l.Kind = kindOf(g)
		}
		for i, field := range l.Fields {
			raw := strings.Trim(r.ReadAttribute(n, i), " \x00")
			if raw == "" {
				continue
			}
			if field.Kind == Number {
				if v, err := strconv.ParseFloat(raw, 64); err == nil {
					f.Properties[field.Name] = v
				}
				continue
			}
			f.Properties[field.Name] = raw
		}
		l.Features = append(l.Features, f)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("vector: %s: %w", path, err)
	}
	return l, nil
}

func shapeGeometry(s shapes.Shape) (orb.Geometry, error) {
	switch s := s.(type) {
	case *shapes.Null:
		return nil, nil
	case *shapes.Point:
		return orb.Point{s.X, s.Y}, nil
	case *shapes.PointZ:
		return orb.Point{s.X, s.Y}, nil
	case *shapes.PointM:
		return orb.Point{s.X, s.Y}, nil
	case *shapes.MultiPoint:
		mp := make(orb.MultiPoint, len(s.Points))
		for i, p := range s.Points {
			mp[i] = orb.Point{p.X, p.Y}
		}
		return mp, nil
	case *shapes.Polygon:
		return assembleRings(s.Parts, s.Points), nil
	case *shapes.PolygonZ:
		return assembleRings(s.Parts, s.Points), nil
	case *shapes.PolygonM:
		return assembleRings(s.Parts, s.Points), nil
	default:
		return nil, fmt.Errorf("unsupported shape %T", s)
	}
}

// assembleRings groups shapefile parts into polygons: clockwise rings are
// shells, counter clockwise rings are holes of the shell containing them.
func assembleRings(parts []int32, points []shapes.Point) orb.Geometry {
	var shells []orb.Polygon
	var holes []orb.Ring
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		ring := make(orb.Ring, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		if ring.Orientation() == orb.CCW && len(parts) > 1 {
			holes = append(holes, ring)
			continue
		}
		shells = append(shells, orb.Polygon{ring})
	}
	for _, h := range holes {
		placed := false
		for i := range shells {
			if len(h) > 0 && planar.RingContains(shells[i][0], h[0]) {
				shells[i] = append(shells[i], h)
				placed = true
				break
			}
		}
		if !placed {
			// orphan holes are treated as shells, as GDAL does
			shells = append(shells, orb.Polygon{h})
		}
	}
	if len(shells) == 1 {
		return shells[0]
	}
	return orb.MultiPolygon(shells)
}

// WriteShapefile stores a point or polygon layer with a .prj. Field names
// longer than the dBase limit are truncated.
func WriteShapefile(path string, l *Layer) error {
	shapeType := shapes.POLYGON
	if l.Kind == Point {
		shapeType = shapes.POINT
	}
	base := strings.TrimSuffix(path, ".shp")
	w, err := shapes.Create(base+".shp", shapeType)
	if err != nil {
		return fmt.Errorf("vector: %w", err)
	}

	fields := make([]shapes.Field, len(l.Fields))
	for i, f := range l.Fields {
		name := f.Name
		if len(name) > dbfNameLength {
			name = name[:dbfNameLength]
		}
		if f.Kind == Number {
			fields[i] = shapes.FloatField(name, 24, 6)
		} else {
			fields[i] = shapes.StringField(name, 254)
		}
	}
	if err := w.SetFields(fields); err != nil {
		w.Close()
		return fmt.Errorf("vector: %w", err)
	}

	var werr error
	for _, f := range l.Features {
		shape, err := toShape(f.Geometry)
		if err != nil {
			werr = fmt.Errorf("vector: feature %d: %w", f.ID, err)
			break
		}
		row := int(w.Write(shape))
		for i, field := range l.Fields {
			v, ok := f.Properties[field.Name]
			if !ok || v == nil {
				continue
			}
			if field.Kind == Number {
				x, ok := f.Float(field.Name)
				if !ok {
					continue
				}
				v = x
			} else {
				v = fmt.Sprint(v)
			}
			if err := w.WriteAttribute(row, i, v); err != nil {
				werr = fmt.Errorf("vector: feature %d field %s: %w", f.ID, field.Name, err)
				break
			}
		}
		if werr != nil {
			break
		}
	}
	w.Close()
	if werr != nil {
		return werr
	}
	if wkt, err := l.CRS.ToWKT(); err == nil {
		if err := os.WriteFile(base+".prj", []byte(wkt), 0o644); err != nil {
			return fmt.Errorf("vector: %w", err)
		}
	}
	return nil
}

func toShape(g orb.Geometry) (shapes.Shape, error) {
	switch g := g.(type) {
	case nil:
		return &shapes.Null{}, nil
	case orb.Point:
		return &shapes.Point{X: g[0], Y: g[1]}, nil
	case orb.Polygon:
		return polygonShape(orb.MultiPolygon{g}), nil
	case orb.MultiPolygon:
		return polygonShape(g), nil
	default:
		return nil, errors.New("only points and polygons can be written to a shapefile")
	}
}

// polygonShape writes shells clockwise and holes counter clockwise, closed.
func polygonShape(mp orb.MultiPolygon) *shapes.Polygon {
	var parts [][]shapes.Point
	for _, p := range mp {
		for i, r := range p {
			r = orient(r, i != 0)
			pts := make([]shapes.Point, 0, len(r)+1)
			for _, c := range r {
				pts = append(pts, shapes.Point{X: c[0], Y: c[1]})
			}
			if len(r) > 0 && !r.Closed() {
				pts = append(pts, shapes.Point{X: r[0][0], Y: r[0][1]})
			}
			parts = append(parts, pts)
		}
	}
	return (*shapes.Polygon)(shapes.NewPolyLine(parts))
}
