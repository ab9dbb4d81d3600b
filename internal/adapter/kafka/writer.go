package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/couchcryptid/era5-etl/internal/config"
	"github.com/couchcryptid/era5-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer announces persisted artifacts on a Kafka topic.
// It implements pipeline.Notifier.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured artifact topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Notify publishes one artifact event.
func (w *Writer) Notify(ctx context.Context, event domain.ArtifactEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish artifact event %s: %w", msg.Key, err)
	}
	w.logger.Debug("artifact event published", "topic", w.writer.Topic, "key", string(msg.Key))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an ArtifactEvent into a Kafka message keyed by
// the artifact file name, so re-runs of a unit land on the same partition.
func serializeToMessage(event domain.ArtifactEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize artifact event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(filepath.Base(event.Path)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "parameter", Value: []byte(event.Parameter)},
			{Key: "created_at", Value: []byte(event.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
