package domain

import (
	"context"
	"time"
)

// TileDescriptor identifies one raster acquisition returned by the catalog.
// IDs are stable across requeries; overlapping search windows may return the
// same descriptor twice and deduplication by ID is the caller's job.
type TileDescriptor struct {
	ID          string    `json:"id"`
	AcquiredAt  time.Time `json:"acquired_at"`
	Footprint   BBox      `json:"footprint"`
	DownloadRef string    `json:"download_ref"`
}

// RawRaster is one fetched acquisition: a 2D backscatter grid plus the
// georeferencing needed to convert pixels back to coordinates. Pixels is
// row-major, Pixels[row][col]. Dual-pol acquisitions additionally carry the
// cross-pol band in VH, same dimensions as Pixels.
type RawRaster struct {
	Pixels    [][]float64
	VH        [][]float64 // nil for single-pol acquisitions
	Nodata    *float64
	Transform [6]float64 // affine: x = t0*col + t1*row + t2; y = t3*col + t4*row + t5
	CRS       string     // e.g. "EPSG:4326" or "EPSG:32633"
}

// TileCatalog is the tile discovery and download collaborator.
type TileCatalog interface {
	// Search lists acquisitions intersecting the region within [from, to].
	// Results may contain duplicates across overlapping windows.
	Search(ctx context.Context, region BBox, from, to time.Time) ([]TileDescriptor, error)

	// Fetch downloads the raster behind a descriptor's DownloadRef.
	Fetch(ctx context.Context, downloadRef string) (*RawRaster, error)
}
