package prepare

import (
	"context"
	"fmt"

	"github.com/godeepar/umep/algorithm"
	"github.com/godeepar/umep/crs"
	"github.com/godeepar/umep/raster"
	"github.com/godeepar/umep/vector"
)

// medianField holds the zonal median before it gets its output name.
const medianField = "height_median"

// Buildings returns the footprints with the median height of the surface
// model inside each one in field. With a DEM the height is taken above
// ground, max(DSM - DEM, 0). Rasters in another CRS than the footprints are
// reprojected first.
func Buildings(ctx context.Context, footprints *vector.Layer, dsm, dem *raster.Grid, field string, fb algorithm.Feedback) (*vector.Layer, error) {
	dsm, err := reproject(ctx, dsm, footprints.CRS, "building DSM", fb)
	if err != nil {
		return nil, err
	}
	heights := dsm
	if dem != nil {
		if dem, err = reproject(ctx, dem, footprints.CRS, "DEM", fb); err != nil {
			return nil, err
		}
		fb.SetProgressText("Computing building heights above ground.")
		if heights, err = raster.HeightAboveGround(dsm, dem); err != nil {
			return nil, fmt.Errorf("prepare: DSM and DEM: %w", err)
		}
	}

	fixed := vector.FixGeometries(footprints)
	if dropped := len(footprints.Features) - len(fixed.Features); dropped > 0 {
		fb.PushWarning(fmt.Sprintf("%d building footprints without valid geometry were dropped", dropped))
	}

	fb.SetProgressText("Calculating the median height of each building footprint.")
	zs, err := vector.ZonalMedian(ctx, fixed, heights, medianField)
	if err != nil {
		return nil, err
	}
	missing := 0
	for _, f := range zs.Features {
		if f.Properties[medianField] == nil {
			missing++
		}
	}
	if missing > 0 {
		fb.PushWarning(fmt.Sprintf("%d building footprints do not cover any DSM pixel, their height is NULL", missing))
	}
	return vector.RenameField(zs, medianField, field)
}

// reproject warps g to target when both CRS are known and differ.
func reproject(ctx context.Context, g *raster.Grid, target crs.CRS, what string, fb algorithm.Feedback) (*raster.Grid, error) {
	switch {
	case g.CRS.IsEmpty() || target.IsEmpty():
		fb.PushWarning(fmt.Sprintf("%s or building footprints without coordinate reference system, %s used as is", what, what))
		return g, nil
	case g.CRS.Equal(target):
		return g, nil
	}
	fb.SetProgressText(fmt.Sprintf("Reprojecting %s from %s to %s.", what, g.CRS, target))
	out, err := raster.Warp(ctx, g, target)
	if err != nil {
		return nil, fmt.Errorf("prepare: %s: %w", what, err)
	}
	return out, nil
}
