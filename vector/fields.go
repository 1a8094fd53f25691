package vector

import (
	"fmt"
	"strings"

	"github.com/godeepar/umep/crs"
)

// Operator compares a feature attribute with a value in ExtractByAttribute.
type Operator int

// Operators, numbered like the processing toolbox numbers them.
const (
	Equal Operator = iota
	NotEqual
	Greater
	GreaterOrEqual
	Less
	LessOrEqual
	BeginsWith
	Contains
	IsNull
	IsNotNull
	DoesNotContain
)

var operatorNames = [...]string{"=", "!=", ">", ">=", "<", "<=", "begins with", "contains", "is null", "is not null", "does not contain"}

func (o Operator) String() string {
	if o < 0 || int(o) >= len(operatorNames) {
		return fmt.Sprintf("Operator(%d)", int(o))
	}
	return operatorNames[o]
}

// ExtractByAttribute keeps the features whose field satisfies op against
// value. Numeric comparisons apply when both sides are numbers, string
// comparisons otherwise. NULL attributes only match IsNull.
func ExtractByAttribute(l *Layer, field string, op Operator, value interface{}) (*Layer, error) {
	if !l.HasField(field) {
		return nil, fmt.Errorf("vector: extract: no field %q in %s", field, l.Name)
	}
	if op < Equal || op > DoesNotContain {
		return nil, fmt.Errorf("vector: extract: unknown operator %d", int(op))
	}
	out := l.Clone()
	out.Features = out.Features[:0]
	for _, f := range l.Clone().Features {
		if match(f, field, op, value) {
			out.Features = append(out.Features, f)
		}
	}
	return out, nil
}

func match(f *Feature, field string, op Operator, value interface{}) bool {
	v := f.Properties[field]
	switch op {
	case IsNull:
		return v == nil
	case IsNotNull:
		return v != nil
	}
	if v == nil {
		return false
	}

	if a, ok := f.Float(field); ok {
		if b, ok := toFloat(value); ok {
			switch op {
			case Equal:
				return a == b
			case NotEqual:
				return a != b
			case Greater:
				return a > b
			case GreaterOrEqual:
				return a >= b
			case Less:
				return a < b
			case LessOrEqual:
				return a <= b
			}
		}
	}

	a, b := fmt.Sprint(v), fmt.Sprint(value)
	switch op {
	case Equal:
		return a == b
	case NotEqual:
		return a != b
	case Greater:
		return a > b
	case GreaterOrEqual:
		return a >= b
	case Less:
		return a < b
	case LessOrEqual:
		return a <= b
	case BeginsWith:
		return strings.HasPrefix(a, b)
	case Contains:
		return strings.Contains(a, b)
	case DoesNotContain:
		return !strings.Contains(a, b)
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	f := Feature{Properties: map[string]interface{}{"v": v}}
	return f.Float("v")
}

// RenameField renames a field and the matching property of every feature.
func RenameField(l *Layer, from, to string) (*Layer, error) {
	i := l.FieldIndex(from)
	if i < 0 {
		return nil, fmt.Errorf("vector: rename: no field %q in %s", from, l.Name)
	}
	if from == to {
		return l.Clone(), nil
	}
	if l.HasField(to) {
		return nil, fmt.Errorf("vector: rename: field %q already exists in %s", to, l.Name)
	}
	out := l.Clone()
	out.Fields[i].Name = to
	for _, f := range out.Features {
		if v, ok := f.Properties[from]; ok {
			f.Properties[to] = v
			delete(f.Properties, from)
		}
	}
	return out, nil
}

// AssignCRS returns a copy of l declared in c. Coordinates are not touched.
func AssignCRS(l *Layer, c crs.CRS) *Layer {
	out := l.Clone()
	out.CRS = c
	return out
}

// CalculateField stores fn(feature) in field, adding the field when needed.
// A nil result is NULL.
func CalculateField(l *Layer, field Field, fn func(*Feature) interface{}) *Layer {
	out := l.Clone()
	out.AddField(field)
	for _, f := range out.Features {
		f.Properties[field.Name] = fn(f)
	}
	return out
}
