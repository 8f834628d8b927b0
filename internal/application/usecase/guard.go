package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bibbank/loginrisk/internal/application/dto"
	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/port"
	"github.com/bibbank/loginrisk/internal/domain/safety"
)

// ErrInvalidRequest marks caller input the use cases refuse to act on.
var ErrInvalidRequest = errors.New("invalid request")

// Resetter is implemented by metrics sources that can start over, such as
// the comparison tracker.
type Resetter interface {
	Reset()
}

// Windower is implemented by metrics sources whose evaluation window follows
// the guard's auto-rollback policy.
type Windower interface {
	SetWindow(window time.Duration)
}

// GuardDeps are the collaborators shared by the guard use cases. Repo and
// Publisher are optional. Interval is how often EvaluateGuard runs; when set,
// every evaluation window must be longer.
type GuardDeps struct {
	Guard     *safety.Guard
	Metrics   port.MetricsSource
	Repo      port.GuardStateRepository
	Publisher port.EventPublisher
	Logger    *slog.Logger
	Now       func() time.Time
	Interval  time.Duration
}

func (d GuardDeps) withDefaults() GuardDeps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

func (d GuardDeps) checkWindow(policy model.AutoRollbackPolicy) error {
	if w := policy.WithDefaults().Window; d.Interval > 0 && w <= d.Interval {
		return fmt.Errorf("%w: evaluation window %s must exceed the guard interval %s", ErrInvalidRequest, w, d.Interval)
	}
	return nil
}

// syncWindow hands the guard's evaluation window to the metrics source.
func (d GuardDeps) syncWindow() {
	if w, ok := d.Metrics.(Windower); ok {
		w.SetWindow(d.Guard.EvaluationWindow())
	}
}

// persist stores the guard snapshot and publishes pending guard events.
func (d GuardDeps) persist(ctx context.Context) error {
	if d.Repo != nil {
		if err := d.Repo.Save(ctx, d.Guard.Snapshot()); err != nil {
			return fmt.Errorf("failed to save guard state: %w", err)
		}
	}
	pending := d.Guard.ClearEvents()
	if len(pending) == 0 || d.Publisher == nil {
		return nil
	}
	evts := make([]any, len(pending))
	for i, e := range pending {
		evts[i] = e
	}
	if err := d.Publisher.Publish(ctx, evts...); err != nil {
		return fmt.Errorf("failed to publish guard events: %w", err)
	}
	return nil
}

// InitializeGuard restores persisted guard state, or arms the guard with the
// configured rollout when nothing was stored.
type InitializeGuard struct {
	deps GuardDeps
}

// NewInitializeGuard creates a new InitializeGuard use case.
func NewInitializeGuard(deps GuardDeps) *InitializeGuard {
	return &InitializeGuard{deps: deps.withDefaults()}
}

// Execute loads or initializes the guard.
func (uc *InitializeGuard) Execute(ctx context.Context, rollout model.RolloutConfig) (dto.GuardStateResponse, error) {
	if uc.deps.Repo != nil {
		snap, found, err := uc.deps.Repo.Load(ctx)
		if err != nil {
			return dto.GuardStateResponse{}, fmt.Errorf("failed to load guard state: %w", err)
		}
		if found {
			if err := uc.deps.checkWindow(snap.Rollout.AutoRollback); err != nil {
				return dto.GuardStateResponse{}, fmt.Errorf("stored guard state: %w", err)
			}
			uc.deps.Guard.Restore(snap)
			uc.deps.syncWindow()
			uc.deps.Logger.Info("restored safety guard state",
				slog.String("state", snap.State),
				slog.Bool("rolled_back", snap.RolledBack),
			)
			return dto.FromSnapshot(uc.deps.Guard.Snapshot()), nil
		}
	}

	if err := uc.deps.checkWindow(rollout.AutoRollback); err != nil {
		return dto.GuardStateResponse{}, err
	}
	uc.deps.Guard.Initialize(rollout, uc.deps.Now())
	uc.deps.syncWindow()
	if err := uc.deps.persist(ctx); err != nil {
		return dto.GuardStateResponse{}, err
	}
	return dto.FromSnapshot(uc.deps.Guard.Snapshot()), nil
}

// EvaluateGuard feeds the current disagreement metrics into the guard. It is
// driven by a scheduler, never per request.
type EvaluateGuard struct {
	deps GuardDeps
}

// NewEvaluateGuard creates a new EvaluateGuard use case.
func NewEvaluateGuard(deps GuardDeps) *EvaluateGuard {
	return &EvaluateGuard{deps: deps.withDefaults()}
}

// Execute runs one evaluation tick.
func (uc *EvaluateGuard) Execute(ctx context.Context) (dto.GuardStateResponse, error) {
	metrics := uc.deps.Metrics.Snapshot()

	rolledBack, err := uc.deps.Guard.Update(metrics, uc.deps.Now())
	if err != nil {
		return dto.GuardStateResponse{}, fmt.Errorf("failed to update guard: %w", err)
	}
	if err := uc.deps.persist(ctx); err != nil {
		return dto.GuardStateResponse{}, err
	}

	resp := dto.FromSnapshot(uc.deps.Guard.Snapshot())
	resp.TriggeredRollback = rolledBack
	return resp, nil
}

// GetGuardState reads the current guard state.
type GetGuardState struct {
	guard *safety.Guard
}

// NewGetGuardState creates a new GetGuardState use case.
func NewGetGuardState(guard *safety.Guard) *GetGuardState {
	return &GetGuardState{guard: guard}
}

// Execute returns the current guard state.
func (uc *GetGuardState) Execute(_ context.Context) dto.GuardStateResponse {
	return dto.FromSnapshot(uc.guard.Snapshot())
}

// ResetGuard re-arms a rolled-back guard. It is the only path back to active.
type ResetGuard struct {
	deps     GuardDeps
	fallback model.RolloutConfig
}

// NewResetGuard creates a new ResetGuard use case. fallback is used when the
// request carries no rollout, and lends its auto-rollback policy to a
// request rollout that sets none.
func NewResetGuard(deps GuardDeps, fallback model.RolloutConfig) *ResetGuard {
	return &ResetGuard{deps: deps.withDefaults(), fallback: fallback.Clone()}
}

// Execute resets the guard and the metrics source.
func (uc *ResetGuard) Execute(ctx context.Context, req dto.ResetGuardRequest) (dto.GuardStateResponse, error) {
	if req.Actor == "" {
		return dto.GuardStateResponse{}, fmt.Errorf("%w: actor is required", ErrInvalidRequest)
	}
	rollout := uc.fallback
	if req.Rollout != nil {
		rollout = req.Rollout.Clone()
		if rollout.AutoRollback == (model.AutoRollbackPolicy{}) {
			rollout.AutoRollback = uc.fallback.AutoRollback
		}
	}
	if rollout.V2Percentage < 0 || rollout.V2Percentage > 100 || rollout.ShadowPercentage < 0 || rollout.ShadowPercentage > 100 {
		return dto.GuardStateResponse{}, fmt.Errorf("%w: rollout percentages must be between 0 and 100", ErrInvalidRequest)
	}
	if err := uc.deps.checkWindow(rollout.AutoRollback); err != nil {
		return dto.GuardStateResponse{}, err
	}

	uc.deps.Guard.Reset(rollout, req.Actor, uc.deps.Now())
	uc.deps.syncWindow()
	if r, ok := uc.deps.Metrics.(Resetter); ok {
		r.Reset()
	}
	uc.deps.Logger.Info("safety guard reset", slog.String("actor", req.Actor))

	if err := uc.deps.persist(ctx); err != nil {
		return dto.GuardStateResponse{}, err
	}
	return dto.FromSnapshot(uc.deps.Guard.Snapshot()), nil
}
