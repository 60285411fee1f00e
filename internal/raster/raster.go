// Package raster turns raw radar acquisitions into analysis-ready grids:
// intensity scaling, despeckling, normalization, invalid-pixel masking, and
// windowing into fixed-size patches.
package raster

import (
	"fmt"
	"math"

	"github.com/oceansentry/slick-detect/internal/domain"
	"github.com/oceansentry/slick-detect/internal/geo"
)

// Grid is a processed 2D raster. Pixels is row-major; Mask marks pixels that
// were valid in the source data (true = usable). The geotransform and CRS
// pass through preprocessing unchanged.
type Grid struct {
	Pixels    [][]float64
	Mask      [][]bool
	Transform geo.Geotransform
	CRS       string
}

// Height returns the number of rows.
func (g *Grid) Height() int { return len(g.Pixels) }

// Width returns the number of columns, 0 for an empty grid.
func (g *Grid) Width() int {
	if len(g.Pixels) == 0 {
		return 0
	}
	return len(g.Pixels[0])
}

// validateRaw rejects rasters the pipeline cannot process: empty grids and
// ragged rows. Returns the dimensions on success.
func validateRaw(raw *domain.RawRaster) (height, width int, err error) {
	if raw == nil || len(raw.Pixels) == 0 || len(raw.Pixels[0]) == 0 {
		return 0, 0, fmt.Errorf("empty raster")
	}
	width = len(raw.Pixels[0])
	for i, row := range raw.Pixels {
		if len(row) != width {
			return 0, 0, fmt.Errorf("ragged raster: row %d has %d columns, want %d", i, len(row), width)
		}
	}
	return len(raw.Pixels), width, nil
}

// VHVVRatio computes the per-pixel VH/VV backscatter ratio for dual-pol
// acquisitions. Oil dampens the cross-pol return, so the ratio separates
// slicks from look-alikes better than VV alone. Zero or negative VV pixels
// map to 0.
func VHVVRatio(vv, vh [][]float64) ([][]float64, error) {
	if len(vv) != len(vh) {
		return nil, fmt.Errorf("polarization grids differ in height: %d vs %d", len(vv), len(vh))
	}
	out := make([][]float64, len(vv))
	for r := range vv {
		if len(vv[r]) != len(vh[r]) {
			return nil, fmt.Errorf("polarization grids differ in width at row %d", r)
		}
		out[r] = make([]float64, len(vv[r]))
		for c := range vv[r] {
			if vv[r][c] > 0 {
				out[r][c] = vh[r][c] / vv[r][c]
			}
		}
	}
	return out, nil
}

func clonePixels(px [][]float64) [][]float64 {
	out := make([][]float64, len(px))
	for i, row := range px {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

func isInvalid(v float64, nodata *float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return true
	}
	return nodata != nil && v == *nodata
}

// clampIdx clamps an index into [0, n), repeating the edge sample for
// window positions that overrun the array.
func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
