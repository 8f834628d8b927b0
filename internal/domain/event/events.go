package event

import (
	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/pkg/events"
)

const (
	// EventTypeRollbackTriggered is emitted when the safety guard pulls v2 traffic.
	EventTypeRollbackTriggered = "loginrisk.guard.rolled_back"

	// EventTypeGuardReset is emitted when an operator re-arms the guard.
	EventTypeGuardReset = "loginrisk.guard.reset"

	// EventTypeShadowCompared is emitted for every shadow-mode comparison.
	EventTypeShadowCompared = "loginrisk.shadow.compared"
)

const (
	aggregateGuard = "safety_guard"
	aggregateLogin = "login_attempt"

	// GuardAggregateID identifies the single process-wide guard.
	GuardAggregateID = "rollout"
)

// RollbackTriggered is published when disagreement metrics breached the
// auto-rollback policy.
type RollbackTriggered struct {
	events.BaseEvent
	Reason  string                    `json:"reason"`
	Metrics model.DisagreementMetrics `json:"metrics"`
}

// NewRollbackTriggered creates a RollbackTriggered event.
func NewRollbackTriggered(reason string, metrics model.DisagreementMetrics) RollbackTriggered {
	return RollbackTriggered{
		BaseEvent: events.NewBaseEvent(EventTypeRollbackTriggered, GuardAggregateID, aggregateGuard),
		Reason:    reason,
		Metrics:   metrics,
	}
}

// GuardReset is published when the guard returns to active.
type GuardReset struct {
	events.BaseEvent
	Actor   string              `json:"actor,omitempty"`
	Rollout model.RolloutConfig `json:"rollout"`
}

// NewGuardReset creates a GuardReset event.
func NewGuardReset(actor string, rollout model.RolloutConfig) GuardReset {
	return GuardReset{
		BaseEvent: events.NewBaseEvent(EventTypeGuardReset, GuardAggregateID, aggregateGuard),
		Actor:     actor,
		Rollout:   rollout,
	}
}

// ShadowCompared carries one shadow comparison to the guard process.
type ShadowCompared struct {
	events.BaseEvent
	Comparison model.ShadowComparison `json:"comparison"`
}

// NewShadowCompared creates a ShadowCompared event keyed by user.
func NewShadowCompared(c model.ShadowComparison) ShadowCompared {
	return ShadowCompared{
		BaseEvent:  events.NewBaseEvent(EventTypeShadowCompared, c.UserID, aggregateLogin),
		Comparison: c,
	}
}
