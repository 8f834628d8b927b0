package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bibbank/loginrisk/internal/domain/event"
	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/port"
	"github.com/bibbank/loginrisk/pkg/events"
	pkgkafka "github.com/bibbank/loginrisk/pkg/kafka"
)

// ComparisonFeed publishes every shadow comparison so that the guard
// process sees the whole fleet.
type ComparisonFeed struct {
	publisher *Publisher
}

var _ port.ComparisonRecorder = (*ComparisonFeed)(nil)

// NewComparisonFeed creates a ComparisonFeed writing to topic.
func NewComparisonFeed(producer pkgkafka.Publisher, topic string, logger *slog.Logger) *ComparisonFeed {
	return &ComparisonFeed{publisher: NewPublisher(producer, topic, logger)}
}

// Record publishes one comparison.
func (f *ComparisonFeed) Record(ctx context.Context, c model.ShadowComparison) error {
	return f.publisher.Publish(ctx, event.NewShadowCompared(c))
}

// ComparisonHandler returns a consumer handler that decodes ShadowCompared
// envelopes and forwards them to sink. Other event types are skipped.
// Undecodable messages are logged and acknowledged so they do not wedge the
// partition.
func ComparisonHandler(sink port.ComparisonRecorder, logger *slog.Logger) pkgkafka.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, msg pkgkafka.Message) error {
		if t, ok := msg.Headers[HeaderEventType]; ok && t != event.EventTypeShadowCompared {
			return nil
		}

		c, err := decodeComparison(msg.Value)
		if err != nil {
			logger.Warn("dropping malformed comparison", slog.String("error", err.Error()))
			return nil
		}
		return sink.Record(ctx, c)
	}
}

func decodeComparison(data []byte) (model.ShadowComparison, error) {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return model.ShadowComparison{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventType != event.EventTypeShadowCompared {
		return model.ShadowComparison{}, fmt.Errorf("unexpected event type %q", env.EventType)
	}
	var evt event.ShadowCompared
	if err := json.Unmarshal(env.Payload, &evt); err != nil {
		return model.ShadowComparison{}, fmt.Errorf("decode payload: %w", err)
	}
	return evt.Comparison, nil
}
