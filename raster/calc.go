package raster

import (
	"math"
)

// HeightAboveGround returns max(dsm - dem, 0) cell by cell. No-data in
// either input stays no-data.
func HeightAboveGround(dsm, dem *Grid) (*Grid, error) {
	if err := dsm.CheckShape(dem); err != nil {
		return nil, err
	}
	out := Like(dsm)
	out.SetNoData(NoDataSentinel)
	if dsm.HasNoData {
		out.SetNoData(dsm.NoData)
	}
	for i, s := range dsm.Data {
		d := dem.Data[i]
		if !dsm.Valid(s) || !dem.Valid(d) {
			out.Data[i] = out.NoData
			continue
		}
		out.Data[i] = math.Max(s-d, 0)
	}
	return out, nil
}

// Round rounds every valid cell to the nearest integer, halves away from zero.
func Round(g *Grid) *Grid {
	out := g.Clone()
	for i, v := range out.Data {
		if g.Valid(v) {
			out.Data[i] = math.Round(v)
		}
	}
	return out
}

// Mask sets cells where mask equals 0 to sentinel, in place.
func Mask(g, mask *Grid, sentinel float64) error {
	if err := g.CheckShape(mask); err != nil {
		return err
	}
	for i, m := range mask.Data {
		if m == 0 {
			g.Data[i] = sentinel
		}
	}
	g.SetNoData(sentinel)
	return nil
}
