package algorithm

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Kind is the type of a parameter.
type Kind int

// Parameter kinds.
const (
	String Kind = iota
	Number
	Integer
	Bool
	Enum
	File
	Folder
	Raster
	Vector
	Field
	RasterDestination
	VectorDestination
	FileDestination
)

var kindNames = [...]string{
	"string", "number", "integer", "bool", "enum", "file", "folder", "raster", "vector",
	"field", "raster destination", "vector destination", "file destination",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Destination reports whether the parameter names an output file.
func (k Kind) Destination() bool {
	return k == RasterDestination || k == VectorDestination || k == FileDestination
}

// Param declares one algorithm parameter.
type Param struct {
	Name        string
	Description string
	Kind        Kind
	Default     string
	Optional    bool
	// Options lists the choices of an Enum, selected by index or by name.
	Options []string
	// Extension is the expected file extension of a File parameter, without dot.
	Extension string
	// Parent names the Vector parameter a Field belongs to.
	Parent string
}

// ErrMissingParam is returned by Validate for a required parameter without value.
var ErrMissingParam = errors.New("missing required parameter")

// Values holds the raw values given to a run, resolved against the declared
// parameters. Unset values fall back to the declared defaults.
type Values struct {
	params map[string]Param
	raw    map[string]string
}

// NewValues binds raw values to params.
func NewValues(params []Param, raw map[string]string) Values {
	v := Values{params: make(map[string]Param, len(params)), raw: make(map[string]string, len(raw))}
	for _, p := range params {
		v.params[p.Name] = p
	}
	for k, s := range raw {
		v.raw[k] = strings.TrimSpace(s)
	}
	return v
}

// Has reports whether name was given a non-empty value.
func (v Values) Has(name string) bool {
	return v.raw[name] != ""
}

// String returns the value of name, or its default.
func (v Values) String(name string) string {
	if s := v.raw[name]; s != "" {
		return s
	}
	return v.params[name].Default
}

// Float parses the value of name as a number.
func (v Values) Float(name string) (float64, error) {
	s := v.String(name)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %q is not a number", name, s)
	}
	return f, nil
}

// Int parses the value of name as an integer.
func (v Values) Int(name string) (int, error) {
	s := v.String(name)
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %q is not an integer", name, s)
	}
	return i, nil
}

// Bool parses the value of name as a boolean. An empty value is false.
func (v Values) Bool(name string) (bool, error) {
	s := v.String(name)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("parameter %s: %q is not a boolean", name, s)
	}
	return b, nil
}

// Enum returns the index of the selected option of name. The value may be
// the index or the option text, compared case insensitively.
func (v Values) Enum(name string) (int, error) {
	p := v.params[name]
	s := v.String(name)
	if i, err := strconv.Atoi(s); err == nil {
		if i < 0 || i >= len(p.Options) {
			return 0, fmt.Errorf("parameter %s: option %d out of range 0-%d", name, i, len(p.Options)-1)
		}
		return i, nil
	}
	for i, o := range p.Options {
		if strings.EqualFold(o, s) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("parameter %s: %q is not one of %s", name, s, strings.Join(p.Options, ", "))
}

// Validate checks that every value belongs to a declared parameter, that
// required parameters are set and that typed values parse.
func (v Values) Validate() error {
	var unknown []string
	for k := range v.raw {
		if _, ok := v.params[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown parameters: %s", strings.Join(unknown, ", "))
	}

	names := make([]string, 0, len(v.params))
	for k := range v.params {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		p := v.params[name]
		if v.String(name) == "" {
			if p.Optional {
				continue
			}
			return fmt.Errorf("%w: %s", ErrMissingParam, name)
		}
		var err error
		switch p.Kind {
		case Number:
			_, err = v.Float(name)
		case Integer:
			_, err = v.Int(name)
		case Bool:
			_, err = v.Bool(name)
		case Enum:
			_, err = v.Enum(name)
		case File:
			if p.Extension != "" && v.Has(name) && !strings.EqualFold(filepath.Ext(v.raw[name]), "."+p.Extension) {
				err = fmt.Errorf("parameter %s: expected a .%s file", name, p.Extension)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}
