package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// RawDetection is a single positive patch classification placed on the map.
// Raw detections are intermediate: the spatial postprocessor merges and
// filters them into final Detections.
type RawDetection struct {
	TileID     string  `json:"tile_id"`
	PatchIndex int     `json:"patch_index"`
	Confidence float64 `json:"confidence"` // calibrated probability of the positive class
	Center     Geo     `json:"center"`
	Bounds     BBox    `json:"bounds"`
}

// Detection is a merged, de-noised slick report handed to the result sink.
type Detection struct {
	ID            string    `json:"id"`
	TileID        string    `json:"tile_id"`
	Center        Geo       `json:"center"` // confidence-weighted centroid
	MemberCount   int       `json:"member_count"`
	MaxConfidence float64   `json:"max_confidence"`
	AvgConfidence float64   `json:"avg_confidence"`
	Envelope      BBox      `json:"envelope"`
	AreaKm2       float64   `json:"area_km2"`
	DetectedAt    time.Time `json:"detected_at"`
}

// NewDetectionID derives a deterministic ID from the detection's key fields.
// Deterministic IDs make sinks idempotent: replaying a tile produces the
// same IDs, so downstream upserts collapse duplicates.
func NewDetectionID(tileID string, center Geo, maxConfidence float64) string {
	input := fmt.Sprintf("%s|%.6f|%.6f|%.4f", tileID, center.Lon, center.Lat, maxConfidence)
	hash := sha256.Sum256([]byte(input))
	return "slick-" + hex.EncodeToString(hash[:8])
}
