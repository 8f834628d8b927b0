package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/plugin"
)

// Telemetry event names.
const (
	TelemetryProviderError      = "provider_error"
	TelemetryShadowDisagreement = "shadow_disagreement"
	TelemetryRuntimeOverride    = "runtime_override"
)

const (
	sourceLocal  = "local"
	sourceRemote = "remote"
)

// V1 runs the local rule-based assessor alone.
func V1(_ context.Context, run Run) (model.RiskAssessmentResult, error) {
	return run.Local.Assess(run.assessmentRequest())
}

// V2 aggregates the local assessor with the optional remote provider. In
// shadow mode it then runs V1 and returns the V1 result.
func V2(ctx context.Context, run Run) (model.RiskAssessmentResult, error) {
	weights := run.Sources.WithDefaults()

	sources := make([]RiskSource, 0, 2)
	local, err := localSource(run, weights.Local)
	if err != nil {
		return model.RiskAssessmentResult{}, err
	}
	sources = append(sources, local)

	if run.Provider != nil {
		remote, ok, err := remoteSource(ctx, run, weights.Remote)
		if err != nil {
			return model.RiskAssessmentResult{}, err
		}
		if ok {
			sources = append(sources, remote)
		}
	}

	v2, err := Aggregate(sources, run.Policy)
	if err != nil {
		return model.RiskAssessmentResult{}, err
	}
	if !run.ShadowMode {
		return v2, nil
	}

	// The comparison always runs after v2 has fully completed.
	v1, err := V1(ctx, run)
	if err != nil {
		return model.RiskAssessmentResult{}, fmt.Errorf("shadow v1: %w", err)
	}
	compareShadow(ctx, run, v1, v2)
	return v1, nil
}

func localSource(run Run, weight float64) (RiskSource, error) {
	result, err := run.Local.Assess(run.assessmentRequest())
	if err == nil {
		return RiskSource{Name: sourceLocal, Result: result, Weight: weight}, nil
	}

	// Plugin failures are already isolated and are fatal in fail-closed mode.
	var perr *plugin.PluginError
	if errors.As(err, &perr) || !run.FailClosed {
		return RiskSource{}, err
	}

	run.audit(model.NewAuditEntry(model.AuditKindStepError, StepRiskAssessment, err, map[string]string{
		"source": sourceLocal,
	}))
	return criticalSource(sourceLocal, weight), nil
}

// remoteSource returns ok=false when the provider failed and the source was
// dropped under fail-open.
func remoteSource(ctx context.Context, run Run, weight float64) (RiskSource, bool, error) {
	ra, err := await(ctx, run.RemoteTimeout, func(ctx context.Context) (model.RemoteAssessment, error) {
		return run.Provider.Assess(ctx, run.Device, run.Context.Clone(), run.RemoteTimeout)
	})
	if err != nil && ctx.Err() != nil {
		// The caller cancelled or the step timed out; not a provider fault.
		return RiskSource{}, false, ctx.Err()
	}

	if err == nil {
		result, convErr := remoteResult(ra, run.Policy)
		if convErr == nil {
			return RiskSource{
				Name:         sourceRemote,
				Result:       result,
				Weight:       weight,
				IsFailClosed: ra.Untrusted(),
			}, true, nil
		}
		err = convErr
	}

	perr := &ProviderError{Err: err, Provider: ra.Provider}
	if run.FailClosed {
		run.audit(model.NewAuditEntry(model.AuditKindProviderError, StepRiskAssessment, perr, map[string]string{
			"handling": "fail_closed",
		}))
		return criticalSource(sourceRemote, weight), true, nil
	}

	run.audit(model.NewAuditEntry(model.AuditKindProviderError, StepRiskAssessment, perr, map[string]string{
		"handling": "dropped",
	}))
	run.emit(TelemetryProviderError, map[string]any{
		"error":     perr.Error(),
		"tenant_id": run.Context.TenantID,
	})
	run.Logger.Warn("remote risk provider failed, continuing local-only", slog.String("error", perr.Error()))
	return RiskSource{}, false, nil
}

func compareShadow(ctx context.Context, run Run, v1, v2 model.RiskAssessmentResult) {
	now := time.Now
	if run.Now != nil {
		now = run.Now
	}
	c := NewComparison(run.Context, v1, v2, now())

	if c.Disagrees() {
		run.audit(model.NewAuditEntry(model.AuditKindShadowDisagree, StepRiskAssessment, nil, comparisonFields(c)))
		run.emit(TelemetryShadowDisagreement, comparisonPayload(c))
	}

	if run.Recorder != nil {
		if err := run.Recorder.Record(ctx, c); err != nil {
			run.Logger.Warn("failed to record shadow comparison", slog.String("error", err.Error()))
		}
	}
}
