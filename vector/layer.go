// Package vector holds feature layers and the vector operations the umep
// tools run on them.
package vector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/godeepar/umep/crs"
)

// GeometryKind is the geometry type shared by the features of a layer.
type GeometryKind int

// Geometry kinds.
const (
	Unknown GeometryKind = iota
	Point
	Polygon
)

func (k GeometryKind) String() string {
	switch k {
	case Point:
		return "point"
	case Polygon:
		return "polygon"
	default:
		return "unknown"
	}
}

// FieldKind is the attribute type of a field.
type FieldKind int

// Field kinds.
const (
	Number FieldKind = iota
	String
)

// Field describes one attribute column.
type Field struct {
	Name string
	Kind FieldKind
}

// Feature is a geometry with attributes. A missing or nil property is NULL.
type Feature struct {
	ID         int
	Geometry   orb.Geometry
	Properties map[string]interface{}
}

// NewFeature returns a feature with an empty property map.
func NewFeature(id int, g orb.Geometry) *Feature {
	return &Feature{ID: id, Geometry: g, Properties: make(map[string]interface{})}
}

// Float returns a numeric property. ok is false for NULL or non numeric values.
func (f *Feature) Float(name string) (float64, bool) {
	switch v := f.Properties[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return x, err == nil
	default:
		return 0, false
	}
}

// Layer is an ordered set of features sharing fields and CRS.
type Layer struct {
	Name     string
	Kind     GeometryKind
	CRS      crs.CRS
	Fields   []Field
	Features []*Feature
}

// FieldIndex returns the position of a field, -1 when absent.
func (l *Layer) FieldIndex(name string) int {
	for i, f := range l.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// HasField reports whether the layer has a field called name.
func (l *Layer) HasField(name string) bool {
	return l.FieldIndex(name) >= 0
}

// AddField appends a field unless one with the same name exists.
func (l *Layer) AddField(f Field) {
	if !l.HasField(f.Name) {
		l.Fields = append(l.Fields, f)
	}
}

// Bound returns the extent of all features.
func (l *Layer) Bound() orb.Bound {
	var b orb.Bound
	first := true
	for _, f := range l.Features {
		if f.Geometry == nil {
			continue
		}
		if first {
			b, first = f.Geometry.Bound(), false
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b
}

// Clone copies the layer, its features and their properties. Geometries are shared.
func (l *Layer) Clone() *Layer {
	out := &Layer{Name: l.Name, Kind: l.Kind, CRS: l.CRS, Fields: append([]Field(nil), l.Fields...)}
	out.Features = make([]*Feature, len(l.Features))
	for i, f := range l.Features {
		props := make(map[string]interface{}, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = v
		}
		out.Features[i] = &Feature{ID: f.ID, Geometry: f.Geometry, Properties: props}
	}
	return out
}

func (l *Layer) String() string {
	return fmt.Sprintf("%s (%s, %d features, %s)", l.Name, l.Kind, len(l.Features), l.CRS)
}

func kindOf(g orb.Geometry) GeometryKind {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return Point
	case orb.Polygon, orb.MultiPolygon, orb.Ring:
		return Polygon
	default:
		return Unknown
	}
}
