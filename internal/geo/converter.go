// Package geo maps raster pixel geometry onto WGS-84 coordinates through an
// affine geotransform and an optional projection step.
package geo

import (
	"math"

	"github.com/oceansentry/slick-detect/internal/domain"
)

// Converter turns pixel windows into geographic points and envelopes.
type Converter struct {
	transform Geotransform
	proj      Projection
}

// NewConverter builds a converter for one raster. It fails early on a
// singular geotransform so the whole tile's patches are dropped at once
// rather than one by one.
func NewConverter(transform Geotransform, crs string) (*Converter, error) {
	proj, err := ProjectionFor(crs)
	if err != nil {
		return nil, &domain.CoordinateConversionError{Reason: err.Error()}
	}
	if _, _, err := transform.WorldToPixel(transform.C, transform.F); err != nil {
		return nil, err
	}
	return &Converter{transform: transform, proj: proj}, nil
}

// PixelToGeo converts a (possibly fractional) pixel position to WGS-84.
func (c *Converter) PixelToGeo(row, col float64) domain.Geo {
	x, y := c.transform.PixelToWorld(row, col)
	lon, lat := c.proj.ToWGS84(x, y)
	return domain.Geo{Lon: lon, Lat: lat}
}

// GeoToPixel converts a WGS-84 point back to pixel coordinates.
func (c *Converter) GeoToPixel(g domain.Geo) (row, col float64, err error) {
	x, y := c.proj.FromWGS84(g.Lon, g.Lat)
	return c.transform.WorldToPixel(x, y)
}

// WindowCenter returns the geographic point under the center of a size×size
// pixel window with its origin at (row, col).
func (c *Converter) WindowCenter(row, col, size int) domain.Geo {
	half := float64(size) / 2
	return c.PixelToGeo(float64(row)+half, float64(col)+half)
}

// WindowEnvelope converts the window's four corners and returns their
// bounding box. Converting all corners (not just two) keeps the envelope
// correct under rotated geotransforms.
func (c *Converter) WindowEnvelope(row, col, size int) domain.BBox {
	corners := []domain.Geo{
		c.PixelToGeo(float64(row), float64(col)),
		c.PixelToGeo(float64(row), float64(col+size)),
		c.PixelToGeo(float64(row+size), float64(col)),
		c.PixelToGeo(float64(row+size), float64(col+size)),
	}
	box := domain.BBox{MinLon: math.Inf(1), MinLat: math.Inf(1), MaxLon: math.Inf(-1), MaxLat: math.Inf(-1)}
	for _, g := range corners {
		box.MinLon = math.Min(box.MinLon, g.Lon)
		box.MinLat = math.Min(box.MinLat, g.Lat)
		box.MaxLon = math.Max(box.MaxLon, g.Lon)
		box.MaxLat = math.Max(box.MaxLat, g.Lat)
	}
	return box
}
