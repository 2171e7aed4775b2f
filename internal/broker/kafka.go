// Package broker appends relay events to the swap event stream consumed by
// the analytics pipeline. The stream is an advisory sink: failures are
// logged by the publisher and never block station responses.
package broker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/evswap/bss-relay/internal/config"
	"github.com/evswap/bss-relay/internal/model"
)

type EventWriter struct {
	writer *kafka.Writer
	logger *log.Logger
}

func NewEventWriter(cfg *config.Config) *EventWriter {
	return &EventWriter{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.KafkaBrokers...),
			Topic:    cfg.KafkaTopic,
			Balancer: &kafka.Hash{},

			BatchSize:    1,
			BatchTimeout: 10 * time.Millisecond,

			RequiredAcks: kafka.RequireOne,
			Compression:  kafka.Snappy,
		},
		logger: cfg.Logger,
	}
}

// Append writes one event keyed by station id so the stream preserves
// per-station order.
func (w *EventWriter) Append(ctx context.Context, event model.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.StationID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event.Name)},
		},
	})
}

func (w *EventWriter) Close() {
	if err := w.writer.Close(); err != nil {
		w.logger.Printf("kafka close error: %v", err)
	}
}
