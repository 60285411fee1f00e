// Package domain models the slick-detection problem space: monitored
// regions (AOIs), satellite tile acquisitions, and the raw and merged
// detections the pipeline produces.
//
// # Regions
//
// An AreaOfInterest is either a lon/lat bounding box or a polygon. The
// Registry keeps AOIs in insertion order so scheduled runs visit regions
// deterministically; disabling an AOI pauses monitoring without losing its
// definition. Point containment is boundary inclusive for both geometry
// kinds.
//
// # Tiles
//
// A TileDescriptor identifies one radar acquisition. Descriptor IDs are
// stable across catalog requeries, which is what makes processed-tile
// bookkeeping and restart safety possible. The raster itself arrives as a
// RawRaster: a row-major backscatter grid plus the affine geotransform and
// CRS needed to place pixels on the map.
//
// # Detections
//
// A RawDetection is one positive patch with a calibrated confidence in
// [0, 1]. The spatial postprocessor merges nearby raw detections into final
// Detection records whose IDs are deterministic SHA-256 hashes of
// tile|lon|lat|confidence, so replaying a tile produces identical IDs and
// idempotent sinks collapse the duplicates.
package domain
