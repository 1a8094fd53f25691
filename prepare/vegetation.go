package prepare

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/godeepar/umep/algorithm"
	"github.com/godeepar/umep/raster"
	"github.com/godeepar/umep/vector"
)

// valueField names the pixel value of vectorized canopy cells.
const valueField = "VALUE"

// VegetationFromRaster turns a canopy height model into one polygon per
// rounded height class above 0 m, with the height in field.
func VegetationFromRaster(ctx context.Context, cdsm *raster.Grid, field string, fb algorithm.Feedback) (*vector.Layer, error) {
	if cdsm.CRS.IsEmpty() {
		fb.PushWarning("Note that your vegetation layer has no SRID, thus the output has also no SRID")
	}
	fb.SetProgressText("Vectorizing vegetation height classes.")
	cells := vector.PixelsToPolygons(raster.Round(cdsm), valueField)

	dissolved, err := vector.Dissolve(ctx, cells, valueField)
	if err != nil {
		return nil, err
	}
	canopy, err := vector.ExtractByAttribute(dissolved, valueField, vector.Greater, 0)
	if err != nil {
		return nil, err
	}
	canopy = vector.AssignCRS(canopy, cdsm.CRS)
	canopy.Name = "vegetation"
	return vector.RenameField(canopy, valueField, field)
}

// CrownRule derives crown radius and tree height of a vegetation point from
// the radius and height fields, either of which may be unset. Aspect is
// the height / radius ratio used for the missing one.
type CrownRule struct {
	RadiusField string
	HeightField string
	Aspect      float64
}

// Apply returns radius and height for f. NULL inputs count as 0 unless the
// other field gives a value to derive from.
func (c CrownRule) Apply(f *vector.Feature) (radius, height float64) {
	r, rok := c.value(f, c.RadiusField)
	h, hok := c.value(f, c.HeightField)
	switch {
	case c.RadiusField != "" && c.HeightField == "":
		if rok {
			return r, r / c.Aspect
		}
		return 0, 0
	case c.RadiusField == "" && c.HeightField != "":
		if hok {
			return h * c.Aspect, h
		}
		return 0, 0
	}
	switch {
	case !rok && !hok:
		return 0, 0
	case !rok:
		return h * c.Aspect, h
	case !hok:
		return r, r / c.Aspect
	}
	return r, h
}

func (c CrownRule) value(f *vector.Feature, field string) (float64, bool) {
	if field == "" {
		return 0, false
	}
	return f.Float(field)
}

// VegetationFromPoints buffers every trunk point by its crown radius and
// writes the tree height to field. Input attributes are kept. Points whose
// radius is not positive give no crown and are reported.
func VegetationFromPoints(ctx context.Context, points *vector.Layer, rule CrownRule, field string, fb algorithm.Feedback) (*vector.Layer, error) {
	if rule.RadiusField == "" && rule.HeightField == "" {
		return nil, ErrMissingVegetationFields
	}
	for _, name := range []string{rule.RadiusField, rule.HeightField} {
		if name != "" && !points.HasField(name) {
			return nil, fmt.Errorf("prepare: vegetation points have no field %q", name)
		}
	}
	if !(rule.Aspect > 0) {
		return nil, fmt.Errorf("prepare: vegetation aspect must be positive, got %g", rule.Aspect)
	}

	fb.SetProgressText("Creating tree crowns from vegetation points.")
	crowns := vector.CalculateField(points, vector.Field{Name: field, Kind: vector.Number}, func(f *vector.Feature) interface{} {
		_, h := rule.Apply(f)
		return h
	})
	crowns.Name = "vegetation"
	crowns.Kind = vector.Polygon
	kept := crowns.Features[:0]
	skipped := 0
	for _, f := range crowns.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		radius, _ := rule.Apply(f)
		g := buffer(f.Geometry, radius)
		if g == nil {
			skipped++
			continue
		}
		f.Geometry = g
		kept = append(kept, f)
	}
	crowns.Features = kept
	if skipped > 0 {
		fb.PushWarning(fmt.Sprintf("%d vegetation points have no crown radius and were left out, the output has %d features for %d input points",
			skipped, len(kept), len(points.Features)))
	}
	return crowns, nil
}

func buffer(g orb.Geometry, radius float64) orb.Geometry {
	switch g := g.(type) {
	case orb.Point:
		if p := vector.Buffer(g, radius, vector.DefaultQuadrantSegments); p != nil {
			return p
		}
	case orb.MultiPoint:
		var mp orb.MultiPolygon
		for _, pt := range g {
			if p := vector.Buffer(pt, radius, vector.DefaultQuadrantSegments); p != nil {
				mp = append(mp, p)
			}
		}
		if len(mp) > 0 {
			return mp
		}
	}
	return nil
}
