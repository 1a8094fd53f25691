// Package crs identifies coordinate reference systems and transforms
// coordinates between them.
package crs

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	geo "github.com/paulmach/go.geo"
)

// ErrUnknown is returned when a CRS cannot be resolved to projection parameters.
var ErrUnknown = errors.New("crs: unknown coordinate reference system")

// CRS is a coordinate reference system known by EPSG code, WKT text or both.
type CRS struct {
	EPSG int
	WKT  string
}

// EPSG returns the CRS for an EPSG code.
func EPSG(code int) CRS {
	return CRS{EPSG: code}
}

var authorityRe = regexp.MustCompile(`AUTHORITY\s*\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)

// FromWKT keeps the WKT and picks up the EPSG code of the outermost authority clause.
func FromWKT(wkt string) CRS {
	c := CRS{WKT: strings.TrimSpace(wkt)}
	if m := authorityRe.FindAllStringSubmatch(c.WKT, -1); len(m) > 0 {
		c.EPSG, _ = strconv.Atoi(m[len(m)-1][1])
	}
	if c.EPSG == 0 {
		c.EPSG = epsgByName(c.WKT)
	}
	return c
}

// Parse accepts "EPSG:3006", "3006", OGC URNs and WKT text.
func Parse(s string) (CRS, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return CRS{}, nil
	case strings.Contains(s, "["):
		return FromWKT(s), nil
	case strings.HasSuffix(s, "CRS84"):
		return EPSG(4326), nil
	}
	code := s
	if i := strings.LastIndex(s, ":"); i >= 0 {
		code = s[i+1:]
	}
	n, err := strconv.Atoi(code)
	if err != nil || n <= 0 {
		return CRS{}, fmt.Errorf("crs: cannot parse %q", s)
	}
	return EPSG(n), nil
}

// IsEmpty reports whether nothing is known about the CRS.
func (c CRS) IsEmpty() bool {
	return c.EPSG == 0 && c.WKT == ""
}

// Equal compares EPSG codes, falling back to the WKT text when either code is missing.
func (c CRS) Equal(o CRS) bool {
	if c.EPSG != 0 && o.EPSG != 0 {
		return c.EPSG == o.EPSG
	}
	if c.WKT == "" || o.WKT == "" {
		return c.IsEmpty() && o.IsEmpty()
	}
	return normalizeWKT(c.WKT) == normalizeWKT(o.WKT)
}

func normalizeWKT(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func (c CRS) String() string {
	switch {
	case c.EPSG != 0:
		return "EPSG:" + strconv.Itoa(c.EPSG)
	case c.WKT != "":
		return "WKT:" + c.WKT
	default:
		return "unknown"
	}
}

// Geographic reports whether coordinates are longitude/latitude degrees.
func (c CRS) Geographic() bool {
	if p, ok := lookup(c.EPSG); ok {
		return strings.Contains(p, "+proj=longlat")
	}
	return strings.HasPrefix(strings.ToUpper(c.WKT), "GEOGCS")
}

// Proj4 returns the proj4 definition of the CRS.
func (c CRS) Proj4() (string, error) {
	if p, ok := lookup(c.EPSG); ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknown, c)
}

// Transformer converts coordinates from one CRS to another.
type Transformer struct {
	fn       proj.Transformer
	mercator int // 1 forward to 3857, -1 inverse, 0 general
	identity bool
}

// NewTransform returns a transformer from src to dst.
func NewTransform(src, dst CRS) (*Transformer, error) {
	if src.Equal(dst) {
		return &Transformer{identity: true}, nil
	}
	switch {
	case src.EPSG == 4326 && dst.EPSG == 3857:
		return &Transformer{mercator: 1}, nil
	case src.EPSG == 3857 && dst.EPSG == 4326:
		return &Transformer{mercator: -1}, nil
	}
	from, err := spatialReference(src)
	if err != nil {
		return nil, err
	}
	to, err := spatialReference(dst)
	if err != nil {
		return nil, err
	}
	fn, err := from.NewTransform(to)
	if err != nil {
		return nil, fmt.Errorf("crs: %s to %s: %w", src, dst, err)
	}
	return &Transformer{fn: fn}, nil
}

func spatialReference(c CRS) (*proj.SR, error) {
	def, err := c.Proj4()
	if err != nil {
		return nil, err
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, fmt.Errorf("crs: parsing %s: %w", c, err)
	}
	return sr, nil
}

// Point transforms one coordinate pair.
func (t *Transformer) Point(x, y float64) (float64, float64, error) {
	switch {
	case t.identity:
		return x, y, nil
	case t.mercator == 1:
		p := geo.NewPoint(x, y)
		geo.Mercator.Project(p)
		return p[0], p[1], nil
	case t.mercator == -1:
		p := geo.NewPoint(x, y)
		geo.Mercator.Inverse(p)
		return p[0], p[1], nil
	}
	g, err := geom.Point{X: x, Y: y}.Transform(t.fn)
	if err != nil {
		return 0, 0, err
	}
	p, ok := g.(geom.Point)
	if !ok {
		return 0, 0, fmt.Errorf("crs: unexpected %T from transform", g)
	}
	return p.X, p.Y, nil
}

// Identity reports whether the transformer leaves coordinates unchanged.
func (t *Transformer) Identity() bool {
	return t.identity
}

// To4326 converts a coordinate in c to longitude/latitude.
func To4326(c CRS, x, y float64) (float64, float64, error) {
	t, err := NewTransform(c, EPSG(4326))
	if err != nil {
		return 0, 0, err
	}
	return t.Point(x, y)
}
