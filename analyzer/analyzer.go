// Package analyzer aggregates the time series rasters written by SOLWEIG and
// SUEWS runs into summary grids.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/godeepar/umep/algorithm"
	"github.com/godeepar/umep/config"
	"github.com/godeepar/umep/observability"
	"github.com/godeepar/umep/raster"
)

var (
	// ErrVariableNotFound is returned when the directory holds no file of the variable.
	ErrVariableNotFound = errors.New("variable not found in output folder")
	// ErrNoRasters is returned when the file subset of a statistic is empty.
	ErrNoRasters = errors.New("no rasters to aggregate")
	// ErrNoDirectory is returned when neither a folder nor a namelist locates the rasters.
	ErrNoDirectory = errors.New("no raster folder: set raster_dir or a namelist with FileOutputPath")
)

// Parameter and output names.
const (
	ParamNamelist      = "namelist"
	ParamRasterDir     = "raster_dir"
	ParamVariable      = "variable"
	ParamBuildingMask  = "building_mask"
	ParamStatType      = "stat_type"
	ParamThresholdType = "threshold_type"
	ParamThreshold     = "threshold"
	OutputStat         = "stat_out"
	OutputThreshold    = "threshold_out"
	OutputPreview      = "preview_out"
)

// Analyzer is the SUEWS Analyzer algorithm.
type Analyzer struct {
	// Metrics is optional.
	Metrics *observability.Metrics
	// Read loads rasters, raster.Read when nil.
	Read Reader
}

// New returns the analyzer reporting to m.
func New(m *observability.Metrics) *Analyzer {
	return &Analyzer{Metrics: m}
}

func (a *Analyzer) Name() string        { return "suewsanalyzer" }
func (a *Analyzer) DisplayName() string { return "Urban Energy Balance: SUEWS Analyzer" }
func (a *Analyzer) Group() string       { return "Post-Processor" }
func (a *Analyzer) GroupID() string     { return "Post-Processor" }

func (a *Analyzer) ShortHelp() string {
	return "The SUEWS Analyzer makes basic grid analysis of model results generated by the SUEWS and SOLWEIG models."
}

func (a *Analyzer) HelpURL() string {
	return "https://umep-docs.readthedocs.io/en/latest/post_processor/Urban%20Energy%20Balance%20SUEWS%20Analyser.html"
}

func (a *Analyzer) Params() []algorithm.Param {
	return []algorithm.Param{
		{Name: ParamNamelist, Description: "SUEWS RunControl namelist", Kind: algorithm.File, Extension: "nml", Optional: true},
		{Name: ParamRasterDir, Description: "Model output folder, FileOutputPath of the namelist when empty", Kind: algorithm.Folder, Optional: true},
		{Name: ParamVariable, Description: "Variable to post-process", Kind: algorithm.Enum, Options: Variables, Default: "0"},
		{Name: ParamBuildingMask, Description: "Raster to exclude building pixels from analysis (0 = building)", Kind: algorithm.Raster, Optional: true},
		{Name: ParamStatType, Description: "Statistic measure", Kind: algorithm.Enum, Options: statisticNames[:], Default: "1"},
		{Name: ParamThresholdType, Description: "Threshold analysis", Kind: algorithm.Enum, Options: []string{"None", "Above", "Below"}, Default: "0"},
		{Name: ParamThreshold, Description: "Threshold, in the unit of the variable", Kind: algorithm.Number, Default: "55"},
		{Name: OutputStat, Description: "Output raster from statistical analysis", Kind: algorithm.RasterDestination},
		{Name: OutputThreshold, Description: "Output raster from threshold analysis", Kind: algorithm.RasterDestination, Optional: true},
		{Name: OutputPreview, Description: "Heat map of the statistic (.png)", Kind: algorithm.FileDestination, Optional: true},
	}
}

// Run aggregates the rasters of one variable.
func (a *Analyzer) Run(ctx context.Context, v algorithm.Values, fb algorithm.Feedback) (algorithm.Outputs, error) {
	fb.SetProgressText("Initializing...")
	dir, err := rasterDir(v)
	if err != nil {
		return nil, err
	}
	vi, err := v.Enum(ParamVariable)
	if err != nil {
		return nil, err
	}
	si, err := v.Enum(ParamStatType)
	if err != nil {
		return nil, err
	}
	ti, err := v.Enum(ParamThresholdType)
	if err != nil {
		return nil, err
	}
	threshold, err := v.Float(ParamThreshold)
	if err != nil {
		return nil, err
	}
	variable, statistic, mode := Variables[vi], Statistic(si), Threshold(ti)

	m, err := ReadManifest(dir, variable)
	if err != nil {
		return nil, err
	}

	var mask *raster.Grid
	if v.Has(ParamBuildingMask) {
		if mask, err = a.read(v.String(ParamBuildingMask)); err != nil {
			return nil, fmt.Errorf("analyzer: building mask: %w", err)
		}
	} else {
		fb.SetProgressText("No building raster loaded.")
	}

	out := algorithm.Outputs{OutputStat: "", OutputThreshold: ""}

	fb.SetProgressText(fmt.Sprintf("Calculating %s %s.", variable, strings.ToLower(statistic.String())))
	subset := m.Subset(statistic)
	if len(subset) == 0 {
		return nil, fmt.Errorf("%w: no %s file of %s in %s", ErrNoRasters, strings.ToLower(statistic.String()), variable, dir)
	}
	grid, err := Aggregate(ctx, statistic, m.Paths(subset), a.count)
	if err != nil {
		return nil, err
	}
	statOut := config.RasterOutput(v.String(OutputStat))
	if err := a.write(statOut, grid, mask); err != nil {
		return nil, err
	}
	out[OutputStat] = statOut
	summarize(fb, fmt.Sprintf("%s %s", variable, statistic), len(subset), grid)
	fb.SetProgress(50)

	if mode != NoThreshold {
		word := "above"
		if mode == Below {
			word = "below"
		}
		fb.SetProgressText(fmt.Sprintf("Calculating %s percent time %s %g.", variable, word, threshold))
		if len(m.All) == 0 {
			return nil, fmt.Errorf("%w: no time step of %s in %s", ErrNoRasters, variable, dir)
		}
		frac, err := Exceedance(ctx, m.Paths(m.All), a.count, mode, threshold)
		if err != nil {
			return nil, err
		}
		thrOut := config.RasterOutput(v.String(OutputThreshold))
		if thrOut == "" {
			thrOut = config.Sibling(statOut, "_threshold")
		}
		if err := a.write(thrOut, frac, mask); err != nil {
			return nil, err
		}
		out[OutputThreshold] = thrOut
		summarize(fb, fmt.Sprintf("%s fraction %s %g", variable, word, threshold), len(m.All), frac)
	}

	if v.Has(OutputPreview) {
		title := fmt.Sprintf("%s %s", variable, strings.ToLower(statistic.String()))
		if err := raster.SavePreview(v.String(OutputPreview), title, grid); err != nil {
			fb.PushWarning(fmt.Sprintf("preview not written: %v", err))
		} else {
			out[OutputPreview] = v.String(OutputPreview)
		}
	}

	fb.SetProgress(100)
	fb.SetProgressText("Processing finished.")
	return out, nil
}

func rasterDir(v algorithm.Values) (string, error) {
	if v.Has(ParamRasterDir) {
		return v.String(ParamRasterDir), nil
	}
	if !v.Has(ParamNamelist) {
		return "", ErrNoDirectory
	}
	nl, err := config.ReadNamelist(v.String(ParamNamelist))
	if err != nil {
		return "", err
	}
	dir, err := nl.OutputPath()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoDirectory, err)
	}
	return dir, nil
}

func (a *Analyzer) read(path string) (*raster.Grid, error) {
	if a.Read != nil {
		return a.Read(path)
	}
	return raster.Read(path)
}

// count reads a raster of the series and records it.
func (a *Analyzer) count(path string) (*raster.Grid, error) {
	g, err := a.read(path)
	if err == nil && a.Metrics != nil {
		a.Metrics.RastersRead.Inc()
	}
	return g, err
}

func (a *Analyzer) write(path string, g, mask *raster.Grid) error {
	if mask != nil {
		if err := raster.Mask(g, mask, raster.NoDataSentinel); err != nil {
			return fmt.Errorf("analyzer: building mask: %w", err)
		}
	}
	if err := raster.Write(path, g); err != nil {
		return fmt.Errorf("analyzer: %w", err)
	}
	return nil
}

// summarize reports mean and standard deviation of the valid cells.
func summarize(fb algorithm.Feedback, what string, files int, g *raster.Grid) {
	valid := g.ValidValues()
	if len(valid) == 0 {
		fb.PushWarning(fmt.Sprintf("%s: no valid cell", what))
		return
	}
	mean, std := stat.MeanStdDev(valid, nil)
	fb.SetProgressText(fmt.Sprintf("%s over %d files: mean %.2f, standard deviation %.2f", what, files, mean, std))
}
