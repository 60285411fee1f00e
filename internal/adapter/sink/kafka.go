package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/oceansentry/slick-detect/internal/domain"
)

// Kafka publishes detections to a topic, one message per detection keyed by
// detection ID. Deterministic IDs make replayed tiles collapse under
// compaction or consumer-side dedup.
type Kafka struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewKafka creates a producer for the detections topic.
func NewKafka(brokers []string, topic string, logger *slog.Logger) *Kafka {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Kafka{writer: w, logger: logger}
}

// Store publishes the tile's detections in a single WriteMessages call.
func (k *Kafka) Store(ctx context.Context, detections []domain.Detection) error {
	if len(detections) == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, len(detections))
	for i, d := range detections {
		msg, err := serializeToMessage(d)
		if err != nil {
			return &domain.StorageError{TileID: d.TileID, Err: err}
		}
		msgs[i] = msg
	}

	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return &domain.StorageError{TileID: detections[0].TileID, Err: err}
	}
	k.logger.Debug("detections published", "count", len(detections))
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

func serializeToMessage(d domain.Detection) (kafkago.Message, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize detection: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(d.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "tile_id", Value: []byte(d.TileID)},
			{Key: "detected_at", Value: []byte(d.DetectedAt.Format(time.RFC3339))},
		},
	}, nil
}
