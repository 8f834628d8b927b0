// Package safety holds the auto-rollback guard that pulls v2 traffic when
// shadow comparisons show the candidate engine is too permissive.
package safety

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bibbank/loginrisk/internal/domain/event"
	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/pkg/events"
)

// State is the lifecycle position of a Guard.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateActive        State = "active"
	StateRolledBack    State = "rolled_back"
)

var (
	// ErrNotInitialized is returned when a guard is updated before Initialize.
	ErrNotInitialized = errors.New("safety guard not initialized")
	// ErrRolledBack is returned when changing the rollout of a rolled-back guard.
	ErrRolledBack = errors.New("safety guard rolled back; reset required")
)

// RollbackFunc is invoked once per rollback, outside the guard lock.
type RollbackFunc func(reason string, metrics model.DisagreementMetrics)

// ShouldRollback reports whether metrics breach policy.
func ShouldRollback(metrics model.DisagreementMetrics, policy model.AutoRollbackPolicy) bool {
	if !policy.Enabled {
		return false
	}
	policy = policy.WithDefaults()
	return metrics.TotalComparisons >= policy.MinComparisons &&
		metrics.V2WeakerPercentage > policy.ThresholdPercent
}

// Guard owns the process-wide rollout configuration. Updates are expected
// from a single driver; the lock only makes concurrent reads safe.
type Guard struct {
	events.EventCollector

	mu          sync.RWMutex
	logger      *slog.Logger
	onRollback  RollbackFunc
	state       State
	reason      string
	rollout     model.RolloutConfig
	metrics     model.DisagreementMetrics
	lastUpdated time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithOnRollback registers the rollback callback.
func WithOnRollback(fn RollbackFunc) Option {
	return func(g *Guard) { g.onRollback = fn }
}

// WithLogger sets the guard logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// NewGuard creates an uninitialized guard.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{state: StateUninitialized, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Initialize arms the guard with rollout. It is a no-op once the guard has
// left the uninitialized state.
func (g *Guard) Initialize(rollout model.RolloutConfig, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateUninitialized {
		return
	}
	g.state = StateActive
	g.rollout = rollout.Clone()
	g.lastUpdated = now
}

// Restore loads persisted state, including a sticky rollback.
func (g *Guard) Restore(s model.GuardSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = State(s.State)
	if s.RolledBack {
		g.state = StateRolledBack
	}
	if g.state != StateActive && g.state != StateRolledBack {
		g.state = StateActive
	}
	g.rollout = s.Rollout.Clone()
	g.metrics = s.Metrics
	g.reason = s.RollbackReason
	g.lastUpdated = s.LastUpdated
}

// Update feeds the latest dashboard metrics, which replace the previous ones.
// Windowing is the metrics source's job, see EvaluationWindow. It returns true
// when this call triggered a rollback.
func (g *Guard) Update(metrics model.DisagreementMetrics, now time.Time) (bool, error) {
	g.mu.Lock()

	switch g.state {
	case StateUninitialized:
		g.mu.Unlock()
		return false, ErrNotInitialized
	case StateRolledBack:
		g.metrics = metrics
		g.lastUpdated = now
		g.mu.Unlock()
		return false, nil
	}

	policy := g.rollout.AutoRollback.WithDefaults()
	g.metrics = metrics
	g.lastUpdated = now

	if !ShouldRollback(metrics, g.rollout.AutoRollback) {
		g.mu.Unlock()
		return false, nil
	}

	reason := fmt.Sprintf("v2 weaker in %.2f%% of %d comparisons, threshold %.2f%%",
		metrics.V2WeakerPercentage, metrics.TotalComparisons, policy.ThresholdPercent)
	g.state = StateRolledBack
	g.reason = reason
	g.rollout = g.rollout.Disabled()
	g.Record(event.NewRollbackTriggered(reason, metrics))
	cb := g.onRollback
	g.mu.Unlock()

	g.logger.Warn("safety guard rolled back v2 traffic",
		slog.String("reason", reason),
		slog.Int("total_comparisons", metrics.TotalComparisons),
		slog.Float64("v2_weaker_percentage", metrics.V2WeakerPercentage),
	)
	if cb != nil {
		cb(reason, metrics)
	}
	return true, nil
}

// Reset returns a guard to active with a new rollout. It is the only way out
// of the rolled-back state.
func (g *Guard) Reset(rollout model.RolloutConfig, actor string, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateActive
	g.reason = ""
	g.rollout = rollout.Clone()
	g.metrics = model.DisagreementMetrics{}
	g.lastUpdated = now
	g.Record(event.NewGuardReset(actor, g.rollout))
}

// SetRollout replaces the traffic split while the guard is active.
func (g *Guard) SetRollout(rollout model.RolloutConfig) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.state {
	case StateUninitialized:
		return ErrNotInitialized
	case StateRolledBack:
		return ErrRolledBack
	}
	g.rollout = rollout.Clone()
	return nil
}

// EvaluationWindow is the span of comparisons each Update should cover, taken
// from the auto-rollback policy.
func (g *Guard) EvaluationWindow() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rollout.AutoRollback.WithDefaults().Window
}

// Rollout returns a copy of the current rollout configuration.
func (g *Guard) Rollout() model.RolloutConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rollout.Clone()
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// IsRolledBack reports whether the guard has rolled back.
func (g *Guard) IsRolledBack() bool {
	return g.State() == StateRolledBack
}

// Snapshot returns a copy of the full guard state.
func (g *Guard) Snapshot() model.GuardSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return model.GuardSnapshot{
		State:          string(g.state),
		RolledBack:     g.state == StateRolledBack,
		RollbackReason: g.reason,
		Rollout:        g.rollout.Clone(),
		Metrics:        g.metrics,
		LastUpdated:    g.lastUpdated,
	}
}
