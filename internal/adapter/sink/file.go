// Package sink provides result sink implementations: local files (JSON plus
// GeoJSON), Kafka, and Postgres. All of them receive one tile's final
// detections per call.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/oceansentry/slick-detect/internal/domain"
)

// File writes each tile's detections to the results directory as a JSON
// record and a GeoJSON feature collection. File names are keyed by tile ID,
// so replaying a tile overwrites rather than duplicates.
type File struct {
	dir    string
	logger *slog.Logger
}

// NewFile creates the results directory if needed.
func NewFile(dir string, logger *slog.Logger) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &File{dir: dir, logger: logger}, nil
}

// Store writes <tile>.json and <tile>.geojson atomically. A tile with zero
// detections writes nothing.
func (f *File) Store(_ context.Context, detections []domain.Detection) error {
	if len(detections) == 0 {
		return nil
	}
	tileID := detections[0].TileID

	record, err := json.MarshalIndent(detections, "", "  ")
	if err != nil {
		return &domain.StorageError{TileID: tileID, Err: err}
	}
	if err := writeAtomic(filepath.Join(f.dir, tileID+".json"), record); err != nil {
		return &domain.StorageError{TileID: tileID, Err: err}
	}

	fc, err := json.MarshalIndent(toFeatureCollection(detections), "", "  ")
	if err != nil {
		return &domain.StorageError{TileID: tileID, Err: err}
	}
	if err := writeAtomic(filepath.Join(f.dir, tileID+".geojson"), fc); err != nil {
		return &domain.StorageError{TileID: tileID, Err: err}
	}

	f.logger.Debug("detections written", "tile", tileID, "count", len(detections))
	return nil
}

// writeAtomic writes via a temp file and rename so readers never see a
// partial result.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// GeoJSON wire types.

type featureCollection struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

type geoFeature struct {
	Type       string         `json:"type"`
	Geometry   geoGeometry    `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geoGeometry struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// toFeatureCollection renders each detection's envelope as a Polygon feature
// with the detection's identity and confidence statistics as properties.
func toFeatureCollection(detections []domain.Detection) featureCollection {
	features := make([]geoFeature, 0, len(detections))
	for _, d := range detections {
		ring := d.Envelope.Ring()
		coords := make([][]float64, 0, len(ring))
		for _, g := range ring {
			coords = append(coords, []float64{g.Lon, g.Lat})
		}
		features = append(features, geoFeature{
			Type: "Feature",
			Geometry: geoGeometry{
				Type:        "Polygon",
				Coordinates: [][][]float64{coords},
			},
			Properties: map[string]any{
				"id":             d.ID,
				"tile_id":        d.TileID,
				"center_lon":     d.Center.Lon,
				"center_lat":     d.Center.Lat,
				"member_count":   d.MemberCount,
				"max_confidence": d.MaxConfidence,
				"avg_confidence": d.AvgConfidence,
				"area_km2":       d.AreaKm2,
				"detected_at":    d.DetectedAt,
			},
		})
	}
	return featureCollection{Type: "FeatureCollection", Features: features}
}
