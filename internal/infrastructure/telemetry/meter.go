package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bibbank/loginrisk/internal/domain/model"
)

const instrumentationName = "github.com/bibbank/loginrisk/telemetry"

// MeterSink counts telemetry events per name. String payload fields listed
// in attributeKeys become metric attributes.
type MeterSink struct {
	events metric.Int64Counter
}

var attributeKeys = []string{"classification", "tenant_id"}

// NewMeterSink registers the event counter on provider.
func NewMeterSink(provider metric.MeterProvider) (*MeterSink, error) {
	counter, err := provider.Meter(instrumentationName).Int64Counter(
		"loginrisk_telemetry_events",
		metric.WithDescription("Pipeline telemetry events by name"),
	)
	if err != nil {
		return nil, fmt.Errorf("create telemetry counter: %w", err)
	}
	return &MeterSink{events: counter}, nil
}

// Send increments the counter.
func (s *MeterSink) Send(ctx context.Context, name string, payload map[string]any, _ time.Time) error {
	attrs := []attribute.KeyValue{attribute.String("event", name)}
	for _, k := range attributeKeys {
		if v, ok := payload[k].(string); ok && v != "" {
			attrs = append(attrs, attribute.String(k, v))
		}
	}
	s.events.Add(ctx, 1, metric.WithAttributes(attrs...))
	return nil
}

// GuardSnapshotter is satisfied by *safety.Guard.
type GuardSnapshotter interface {
	Snapshot() model.GuardSnapshot
}

// RegisterGuardGauges exposes the guard state and its latest disagreement
// metrics as observable gauges.
func RegisterGuardGauges(provider metric.MeterProvider, guard GuardSnapshotter) (metric.Registration, error) {
	meter := provider.Meter(instrumentationName)

	rolledBack, err := meter.Int64ObservableGauge(
		"loginrisk_guard_rolled_back",
		metric.WithDescription("1 when the safety guard has rolled back v2 traffic"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rolled_back gauge: %w", err)
	}
	comparisons, err := meter.Int64ObservableGauge(
		"loginrisk_guard_comparisons",
		metric.WithDescription("Shadow comparisons in the current evaluation window"),
	)
	if err != nil {
		return nil, fmt.Errorf("create comparisons gauge: %w", err)
	}
	weaker, err := meter.Float64ObservableGauge(
		"loginrisk_guard_v2_weaker_percent",
		metric.WithDescription("Share of comparisons where v2 was more permissive"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return nil, fmt.Errorf("create v2_weaker gauge: %w", err)
	}
	v2Pct, err := meter.Int64ObservableGauge(
		"loginrisk_rollout_v2_percent",
		metric.WithDescription("Configured share of traffic on v2"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rollout gauge: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		snap := guard.Snapshot()
		var rb int64
		if snap.RolledBack {
			rb = 1
		}
		o.ObserveInt64(rolledBack, rb, metric.WithAttributes(attribute.String("state", snap.State)))
		o.ObserveInt64(comparisons, int64(snap.Metrics.TotalComparisons))
		o.ObserveFloat64(weaker, snap.Metrics.V2WeakerPercentage)
		o.ObserveInt64(v2Pct, int64(snap.Rollout.V2Percentage))
		return nil
	}, rolledBack, comparisons, weaker, v2Pct)
}
