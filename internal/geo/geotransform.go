package geo

import (
	"math"

	"github.com/oceansentry/slick-detect/internal/domain"
)

// Geotransform is the affine mapping from pixel indices to projected
// coordinates, in the usual GDAL ordering:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
//
// For north-up rasters B and D are zero, A is the pixel width and E the
// (negative) pixel height.
type Geotransform struct {
	A, B, C, D, E, F float64
}

// GeotransformFromArray builds a Geotransform from the six-element wire form.
func GeotransformFromArray(t [6]float64) Geotransform {
	return Geotransform{A: t[0], B: t[1], C: t[2], D: t[3], E: t[4], F: t[5]}
}

// PixelToWorld maps a (row, col) pixel position to projected coordinates.
// Fractional positions are allowed so patch centers land mid-pixel.
func (g Geotransform) PixelToWorld(row, col float64) (x, y float64) {
	x = g.A*col + g.B*row + g.C
	y = g.D*col + g.E*row + g.F
	return x, y
}

// WorldToPixel inverts the affine mapping. It returns a
// CoordinateConversionError when the transform is singular (zero
// determinant), which happens for degenerate or shear-collapsed transforms.
func (g Geotransform) WorldToPixel(x, y float64) (row, col float64, err error) {
	det := g.A*g.E - g.B*g.D
	if math.Abs(det) < 1e-15 {
		return 0, 0, &domain.CoordinateConversionError{Reason: "singular geotransform"}
	}
	dx := x - g.C
	dy := y - g.F
	col = (g.E*dx - g.B*dy) / det
	row = (g.A*dy - g.D*dx) / det
	return row, col, nil
}
