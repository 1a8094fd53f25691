package analyzer

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/godeepar/umep/raster"
)

// Statistic is the aggregate computed over a time series.
type Statistic int

// Statistics, numbered like the stat_type option.
const (
	DiurnalMean Statistic = iota
	DaytimeMean
	NighttimeMean
	Maximum
	Minimum
)

var statisticNames = [...]string{"Diurnal average", "Daytime average", "Nighttime average", "Maximum", "Minimum"}

func (s Statistic) String() string {
	if s < 0 || int(s) >= len(statisticNames) {
		return fmt.Sprintf("Statistic(%d)", int(s))
	}
	return statisticNames[s]
}

// Threshold selects the exceedance fraction computed besides the statistic.
type Threshold int

// Threshold modes, numbered like the threshold_type option.
const (
	NoThreshold Threshold = iota
	Above
	Below
)

// Seeds of the running extrema.
const (
	maxSeed = -100.0
	minSeed = 100.0
)

// Subset returns the file names a statistic is computed over.
func (m *Manifest) Subset(s Statistic) []string {
	switch s {
	case DaytimeMean:
		return m.Day
	case NighttimeMean:
		return m.Night
	default:
		return m.All
	}
}

// Reader loads one raster of a series.
type Reader func(path string) (*raster.Grid, error)

// fold reads every path in order and folds its cells into acc with step.
// The returned grid carries the georeference of the last raster read.
func fold(ctx context.Context, paths []string, read Reader, seed float64, step func(acc, v []float64)) (*raster.Grid, error) {
	if len(paths) == 0 {
		return nil, ErrNoRasters
	}
	var acc *raster.Grid
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, err := read(p)
		if err != nil {
			return nil, fmt.Errorf("analyzer: %w", err)
		}
		if acc == nil {
			acc = raster.Like(g)
			if seed != 0 {
				floats.AddConst(seed, acc.Data)
			}
		} else if err := acc.CheckShape(g); err != nil {
			return nil, fmt.Errorf("analyzer: %s: %w", p, err)
		}
		step(acc.Data, g.Data)
		acc.CopyGeoreference(g)
	}
	return acc, nil
}

// Mean returns the cell by cell arithmetic mean of the rasters.
func Mean(ctx context.Context, paths []string, read Reader) (*raster.Grid, error) {
	g, err := fold(ctx, paths, read, 0, func(acc, v []float64) { floats.Add(acc, v) })
	if err != nil {
		return nil, err
	}
	floats.Scale(1/float64(len(paths)), g.Data)
	return g, nil
}

// Max returns the cell by cell maximum, never below -100.
func Max(ctx context.Context, paths []string, read Reader) (*raster.Grid, error) {
	return fold(ctx, paths, read, maxSeed, func(acc, v []float64) {
		for i := range acc {
			acc[i] = math.Max(acc[i], v[i])
		}
	})
}

// Min returns the cell by cell minimum, never above 100.
func Min(ctx context.Context, paths []string, read Reader) (*raster.Grid, error) {
	return fold(ctx, paths, read, minSeed, func(acc, v []float64) {
		for i := range acc {
			acc[i] = math.Min(acc[i], v[i])
		}
	})
}

// Exceedance returns per cell the fraction of rasters whose value is above
// (or below) threshold. Equal values do not count.
func Exceedance(ctx context.Context, paths []string, read Reader, mode Threshold, threshold float64) (*raster.Grid, error) {
	if mode != Above && mode != Below {
		return nil, fmt.Errorf("analyzer: no exceedance for threshold mode %d", mode)
	}
	g, err := fold(ctx, paths, read, 0, func(acc, v []float64) {
		for i, x := range v {
			if (mode == Above && x > threshold) || (mode == Below && x < threshold) {
				acc[i]++
			}
		}
	})
	if err != nil {
		return nil, err
	}
	floats.Scale(1/float64(len(paths)), g.Data)
	return g, nil
}

// Aggregate computes statistic s over paths.
func Aggregate(ctx context.Context, s Statistic, paths []string, read Reader) (*raster.Grid, error) {
	switch s {
	case DiurnalMean, DaytimeMean, NighttimeMean:
		return Mean(ctx, paths, read)
	case Maximum:
		return Max(ctx, paths, read)
	case Minimum:
		return Min(ctx, paths, read)
	default:
		return nil, fmt.Errorf("analyzer: unknown statistic %d", s)
	}
}
