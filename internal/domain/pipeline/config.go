package pipeline

import (
	"log/slog"
	"time"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/plugin"
	"github.com/bibbank/loginrisk/internal/domain/port"
	"github.com/bibbank/loginrisk/internal/domain/valueobject"
)

// Timeouts bounds each step. Zero values use the defaults.
type Timeouts struct {
	Fingerprint    time.Duration
	RiskAssessment time.Duration
	RemoteProvider time.Duration
}

// WithDefaults fills zero timeouts.
func (t Timeouts) WithDefaults() Timeouts {
	if t.Fingerprint <= 0 {
		t.Fingerprint = DefaultFingerprintTimeout
	}
	if t.RiskAssessment <= 0 {
		t.RiskAssessment = DefaultRiskAssessmentTimeout
	}
	if t.RemoteProvider <= 0 {
		t.RemoteProvider = DefaultRemoteProviderTimeout
	}
	return t
}

// Config is the per-call input of Engine.Execute.
type Config struct {
	RemoteProvider port.RemoteRiskProvider
	AuditLogger    port.AuditLogger
	Logger         *slog.Logger

	// Fingerprint, when set, bypasses the fingerprint collector.
	Fingerprint *DeterministicFingerprint

	Environment string
	FailureMode valueobject.FailureMode
	Plugins     []plugin.Plugin
	Context     model.RiskContext
	Rollout     model.RolloutConfig
	Isolation   plugin.IsolationConfig
	Sources     SourceWeights
	Policy      model.Policy
	Timeouts    Timeouts

	// Version 0 lets the flag resolver decide.
	Version    int
	ShadowMode bool

	// V2Halted caps every call at v1 without shadow, including calls that
	// ask for a version explicitly. Set while the safety guard is rolled back.
	V2Halted bool

	// AuditAssessments forwards every local assessment to the audit logger.
	AuditAssessments bool
}

// Run is the effective, validated input handed to a version builder.
type Run struct {
	Local     port.LocalAssessor
	Provider  port.RemoteRiskProvider
	Audit     port.AuditLogger
	Telemetry port.TelemetryEmitter
	Recorder  port.ComparisonRecorder
	Logger    *slog.Logger
	Plugins   *plugin.Set
	AuditHook port.AuditHook
	Now       func() time.Time

	Device        model.DeviceInfo
	Context       model.RiskContext
	Policy        model.Policy
	Sources       SourceWeights
	RemoteTimeout time.Duration
	FailClosed    bool
	ShadowMode    bool
}

func (r Run) assessmentRequest() port.AssessmentRequest {
	return port.AssessmentRequest{
		Device:    r.Device,
		Context:   r.Context,
		Policy:    r.Policy,
		Plugins:   r.Plugins,
		AuditHook: r.AuditHook,
	}
}

func (r Run) audit(entry model.AuditEntry) {
	if r.Audit != nil {
		r.Audit.Log(entry)
	}
}

func (r Run) emit(name string, payload map[string]any) {
	if r.Telemetry != nil {
		r.Telemetry.Emit(name, payload)
	}
}
