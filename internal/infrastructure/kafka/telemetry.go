package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pkgkafka "github.com/bibbank/loginrisk/pkg/kafka"
)

// TelemetryRecord is the wire form of one telemetry event.
type TelemetryRecord struct {
	EmittedAt time.Time      `json:"emitted_at"`
	Payload   map[string]any `json:"payload,omitempty"`
	Name      string         `json:"name"`
}

// TelemetrySink forwards telemetry events to a Kafka topic. It is meant to
// sit behind the asynchronous telemetry dispatcher, never on the request path.
type TelemetrySink struct {
	producer pkgkafka.Publisher
	topic    string
}

// NewTelemetrySink creates a TelemetrySink.
func NewTelemetrySink(producer pkgkafka.Publisher, topic string) *TelemetrySink {
	return &TelemetrySink{producer: producer, topic: topic}
}

// Send publishes one telemetry record.
func (s *TelemetrySink) Send(ctx context.Context, name string, payload map[string]any, at time.Time) error {
	value, err := json.Marshal(TelemetryRecord{Name: name, Payload: payload, EmittedAt: at})
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry %s: %w", name, err)
	}
	return s.producer.Publish(ctx, s.topic, pkgkafka.Message{
		Key:     []byte(name),
		Value:   value,
		Headers: map[string]string{HeaderEventType: name},
	})
}
