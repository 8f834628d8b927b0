package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bibbank/loginrisk/internal/domain/port"
	"github.com/bibbank/loginrisk/pkg/events"
	pkgkafka "github.com/bibbank/loginrisk/pkg/kafka"
)

// HeaderEventType carries the event type on every published message.
const HeaderEventType = "event_type"

// Publisher implements port.EventPublisher using Kafka. Events are wrapped
// in an events.Envelope and keyed by aggregate ID.
type Publisher struct {
	producer pkgkafka.Publisher
	logger   *slog.Logger
	topic    string
}

var _ port.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a new Kafka event publisher.
func NewPublisher(producer pkgkafka.Publisher, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Publish sends domain events to Kafka. Values that are not domain events
// are rejected before anything is sent.
func (p *Publisher) Publish(ctx context.Context, domainEvents ...any) error {
	messages := make([]pkgkafka.Message, 0, len(domainEvents))
	for _, raw := range domainEvents {
		evt, ok := raw.(events.DomainEvent)
		if !ok {
			return fmt.Errorf("cannot publish %T: not a domain event", raw)
		}

		msg, err := encode(evt)
		if err != nil {
			return err
		}

		p.logger.DebugContext(ctx, "publishing event",
			slog.String("event_type", evt.EventType()),
			slog.String("topic", p.topic),
			slog.Int("payload_size", len(msg.Value)),
		)
		messages = append(messages, msg)
	}

	if len(messages) == 0 {
		return nil
	}

	if err := p.producer.Publish(ctx, p.topic, messages...); err != nil {
		return fmt.Errorf("failed to publish events to topic %s: %w", p.topic, err)
	}
	return nil
}

func encode(evt events.DomainEvent) (pkgkafka.Message, error) {
	env, err := events.NewEnvelope(evt)
	if err != nil {
		return pkgkafka.Message{}, fmt.Errorf("failed to wrap event: %w", err)
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return pkgkafka.Message{}, fmt.Errorf("failed to marshal event %s: %w", evt.EventType(), err)
	}
	return pkgkafka.Message{
		Key:     []byte(evt.AggregateID()),
		Value:   payload,
		Headers: map[string]string{HeaderEventType: evt.EventType()},
	}, nil
}
