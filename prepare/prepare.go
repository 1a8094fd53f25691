// Package prepare builds the building and vegetation layers URock takes as
// input, with heights from surface models or from vegetation points.
package prepare

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/godeepar/umep/algorithm"
	"github.com/godeepar/umep/config"
	"github.com/godeepar/umep/observability"
	"github.com/godeepar/umep/raster"
	"github.com/godeepar/umep/vector"
)

var (
	// ErrAmbiguousVegetation is returned when both a canopy raster and vegetation points are given.
	ErrAmbiguousVegetation = errors.New("A single vegetation input should be provided, either DSM or vector")
	// ErrMissingVegetationFields is returned for vegetation points without radius or height field.
	ErrMissingVegetationFields = errors.New("At least tree crown radius or tree height attribute should be provided")
)

// Parameter and output names.
const (
	ParamBuildFootprint   = "build_footprint"
	ParamBuildDSM         = "build_dsm"
	ParamBuildDEM         = "build_dem"
	ParamVegCDSM          = "veg_cdsm"
	ParamVegPoints        = "veg_points"
	ParamHeightVegField   = "height_veg_field"
	ParamRadiusVegField   = "radius_veg_field"
	ParamVegetationAspect = "vegetation_aspect"
	ParamBuildHeightField = "build_height_field"
	ParamVegHeightField   = "veg_height_field"
	ParamS2Level          = "s2_level"
	OutputBuildings       = "build_out"
	OutputVegetation      = "veg_out"
)

// Default output names, in the temporary directory.
const (
	DefaultBuildName = "build_vector"
	DefaultVegName   = "veg_vector"
)

// s2Field holds the S2 cell token of each output feature.
const s2Field = "S2_CELL"

// Prepare is the URock Prepare algorithm.
type Prepare struct {
	// TmpDir receives outputs without an explicit destination.
	TmpDir string
	// Metrics is optional.
	Metrics *observability.Metrics
}

// New returns the algorithm writing default outputs to tmpDir.
func New(tmpDir string, m *observability.Metrics) *Prepare {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &Prepare{TmpDir: tmpDir, Metrics: m}
}

func (p *Prepare) Name() string        { return "urockprepare" }
func (p *Prepare) DisplayName() string { return "Urban Wind Field: URock Prepare" }
func (p *Prepare) Group() string       { return "Pre-Processor" }
func (p *Prepare) GroupID() string     { return "Pre-Processor" }

func (p *Prepare) ShortHelp() string {
	return "URock Prepare creates building and vegetation polygon vector layers that can directly be used as input of URock. " +
		"Only a single vegetation layer should be provided as input, either a vegetation DSM or vegetation point data (trunk location)."
}

func (p *Prepare) HelpURL() string {
	return "https://umep-docs.readthedocs.io/en/latest/pre-processor/Urban%20Wind%20Field%20URock%20Prepare.html"
}

func (p *Prepare) Params() []algorithm.Param {
	return []algorithm.Param{
		{Name: ParamBuildFootprint, Description: "Buildings footprint", Kind: algorithm.Vector, Optional: true},
		{Name: ParamBuildDSM, Description: "Buildings raster DSM (3D objects + ground or only 3D objects) [m asl or m agl]", Kind: algorithm.Raster, Optional: true},
		{Name: ParamBuildDEM, Description: "DEM (ground, only if building DSM is 3D objects + ground) [m asl]", Kind: algorithm.Raster, Optional: true},
		{Name: ParamVegCDSM, Description: "Vegetation raster DSM (3D canopy) [m agl]", Kind: algorithm.Raster, Optional: true},
		{Name: ParamVegPoints, Description: "Vegetation point data (trunk location and max height)", Kind: algorithm.Vector, Optional: true},
		{Name: ParamHeightVegField, Description: "Vegetation height field", Kind: algorithm.Field, Parent: ParamVegPoints, Optional: true},
		{Name: ParamRadiusVegField, Description: "Horizontal vegetation radius field", Kind: algorithm.Field, Parent: ParamVegPoints, Optional: true},
		{Name: ParamVegetationAspect, Description: "Tree height / tree crown radius ratio used if either height or radius value is missing", Kind: algorithm.Number, Default: "0.75"},
		{Name: OutputBuildings, Description: "Output building vector file", Kind: algorithm.VectorDestination, Optional: true},
		{Name: ParamBuildHeightField, Description: "Attribute name for building height in output table", Kind: algorithm.String, Default: "ROOF_HEIGHT"},
		{Name: OutputVegetation, Description: "Output vegetation vector file", Kind: algorithm.VectorDestination, Optional: true},
		{Name: ParamVegHeightField, Description: "Attribute name for vegetation height in output table", Kind: algorithm.String, Default: "VEG_HEIGHT"},
		{Name: ParamS2Level, Description: "S2 cell level of the token added to each output feature (0-30)", Kind: algorithm.Integer, Optional: true},
	}
}

// Run builds the layers whose inputs are given. An output not produced is "".
func (p *Prepare) Run(ctx context.Context, v algorithm.Values, fb algorithm.Feedback) (algorithm.Outputs, error) {
	if v.Has(ParamVegCDSM) && v.Has(ParamVegPoints) {
		return nil, ErrAmbiguousVegetation
	}
	if v.Has(ParamVegPoints) && !v.Has(ParamRadiusVegField) && !v.Has(ParamHeightVegField) {
		return nil, ErrMissingVegetationFields
	}

	buildOut, warning := config.VectorOutput(v.String(OutputBuildings), p.TmpDir, DefaultBuildName)
	if warning != "" {
		fb.PushWarning("building output: " + warning)
	}
	vegOut, warning := config.VectorOutput(v.String(OutputVegetation), p.TmpDir, DefaultVegName)
	if warning != "" {
		fb.PushWarning("vegetation output: " + warning)
	}
	out := algorithm.Outputs{OutputBuildings: "", OutputVegetation: ""}

	switch {
	case v.Has(ParamBuildFootprint) && v.Has(ParamBuildDSM):
		layer, err := p.buildings(ctx, v, fb)
		if err != nil {
			return nil, err
		}
		if err := p.write(buildOut, OutputBuildings, layer, v, fb); err != nil {
			return nil, err
		}
		out[OutputBuildings] = buildOut
	case v.Has(ParamBuildFootprint):
		fb.PushWarning("A building footprint was given without building DSM, no building layer is created")
	case v.Has(ParamBuildDSM):
		fb.PushWarning("A building DSM was given without building footprint, no building layer is created")
	}
	fb.SetProgress(50)

	if v.Has(ParamVegCDSM) || v.Has(ParamVegPoints) {
		layer, err := p.vegetation(ctx, v, fb)
		if err != nil {
			return nil, err
		}
		if err := p.write(vegOut, OutputVegetation, layer, v, fb); err != nil {
			return nil, err
		}
		out[OutputVegetation] = vegOut
	}

	fb.SetProgress(100)
	fb.SetProgressText("Processing finished.")
	return out, nil
}

func (p *Prepare) buildings(ctx context.Context, v algorithm.Values, fb algorithm.Feedback) (*vector.Layer, error) {
	footprints, err := vector.Read(v.String(ParamBuildFootprint))
	if err != nil {
		return nil, fmt.Errorf("prepare: building footprint: %w", err)
	}
	dsm, err := raster.Read(v.String(ParamBuildDSM))
	if err != nil {
		return nil, fmt.Errorf("prepare: building DSM: %w", err)
	}
	var dem *raster.Grid
	if v.Has(ParamBuildDEM) {
		if dem, err = raster.Read(v.String(ParamBuildDEM)); err != nil {
			return nil, fmt.Errorf("prepare: DEM: %w", err)
		}
	}
	return Buildings(ctx, footprints, dsm, dem, v.String(ParamBuildHeightField), fb)
}

func (p *Prepare) vegetation(ctx context.Context, v algorithm.Values, fb algorithm.Feedback) (*vector.Layer, error) {
	field := v.String(ParamVegHeightField)
	if v.Has(ParamVegCDSM) {
		cdsm, err := raster.Read(v.String(ParamVegCDSM))
		if err != nil {
			return nil, fmt.Errorf("prepare: vegetation DSM: %w", err)
		}
		return VegetationFromRaster(ctx, cdsm, field, fb)
	}

	points, err := vector.Read(v.String(ParamVegPoints))
	if err != nil {
		return nil, fmt.Errorf("prepare: vegetation points: %w", err)
	}
	aspect, err := v.Float(ParamVegetationAspect)
	if err != nil {
		return nil, err
	}
	rule := CrownRule{
		RadiusField: v.String(ParamRadiusVegField),
		HeightField: v.String(ParamHeightVegField),
		Aspect:      aspect,
	}
	return VegetationFromPoints(ctx, points, rule, field, fb)
}

// write stores layer at path, with S2 tokens when asked for, and reports
// the cells the layer covers.
func (p *Prepare) write(path, output string, layer *vector.Layer, v algorithm.Values, fb algorithm.Feedback) error {
	if v.Has(ParamS2Level) {
		level, err := v.Int(ParamS2Level)
		if err != nil {
			return err
		}
		if layer, err = vector.AddS2Tokens(layer, s2Field, level); err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
	}
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		for _, f := range layer.Fields {
			if len(f.Name) > 10 {
				fb.PushWarning(fmt.Sprintf("field %s is cut to %s in the shapefile %s", f.Name, f.Name[:10], path))
			}
		}
	}
	if err := vector.Write(path, layer); err != nil {
		return fmt.Errorf("prepare: %s: %w", output, err)
	}
	if p.Metrics != nil {
		p.Metrics.FeaturesWritten.WithLabelValues(output).Add(float64(len(layer.Features)))
	}
	if tokens, err := vector.S2Covering(layer); err == nil && len(tokens) > 0 {
		fb.SetProgressText(fmt.Sprintf("%s: %d features written to %s, covering S2 cells %s", output, len(layer.Features), path, strings.Join(tokens, ",")))
	} else {
		fb.SetProgressText(fmt.Sprintf("%s: %d features written to %s", output, len(layer.Features), path))
	}
	return nil
}
