package sink

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/oceansentry/slick-detect/internal/domain"
)

// Postgres persists detections in a detections table. Inserts conflict on
// the deterministic detection ID and do nothing, so replayed tiles are
// idempotent at the database too.
type Postgres struct {
	db     *sqlx.DB
	logger *slog.Logger
}

const insertDetection = `
INSERT INTO detections (
	id, tile_id, center_lon, center_lat, member_count,
	max_confidence, avg_confidence,
	min_lon, min_lat, max_lon, max_lat,
	area_km2, detected_at
) VALUES (
	:id, :tile_id, :center_lon, :center_lat, :member_count,
	:max_confidence, :avg_confidence,
	:min_lon, :min_lat, :max_lon, :max_lat,
	:area_km2, :detected_at
)
ON CONFLICT (id) DO NOTHING`

// NewPostgres connects and verifies the database is reachable.
func NewPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &Postgres{db: db, logger: logger}, nil
}

// Store inserts the tile's detections in one transaction. Partial inserts
// never become visible, so the scheduler can safely retry the whole tile.
func (p *Postgres) Store(ctx context.Context, detections []domain.Detection) error {
	if len(detections) == 0 {
		return nil
	}
	tileID := detections[0].TileID

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return &domain.StorageError{TileID: tileID, Err: err}
	}
	defer tx.Rollback()

	for _, d := range detections {
		if _, err := tx.NamedExecContext(ctx, insertDetection, detectionRow(d)); err != nil {
			return &domain.StorageError{TileID: tileID, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &domain.StorageError{TileID: tileID, Err: err}
	}

	p.logger.Debug("detections inserted", "tile", tileID, "count", len(detections))
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func detectionRow(d domain.Detection) map[string]any {
	return map[string]any{
		"id":             d.ID,
		"tile_id":        d.TileID,
		"center_lon":     d.Center.Lon,
		"center_lat":     d.Center.Lat,
		"member_count":   d.MemberCount,
		"max_confidence": d.MaxConfidence,
		"avg_confidence": d.AvgConfidence,
		"min_lon":        d.Envelope.MinLon,
		"min_lat":        d.Envelope.MinLat,
		"max_lon":        d.Envelope.MaxLon,
		"max_lat":        d.Envelope.MaxLat,
		"area_km2":       d.AreaKm2,
		"detected_at":    d.DetectedAt,
	}
}
