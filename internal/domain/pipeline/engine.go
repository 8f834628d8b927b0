package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/plugin"
	"github.com/bibbank/loginrisk/internal/domain/port"
	"github.com/bibbank/loginrisk/internal/domain/service"
	"github.com/bibbank/loginrisk/internal/domain/valueobject"
)

const environmentProduction = "production"

// EngineDeps are the long-lived collaborators of an Engine. Only Registry is
// required.
type EngineDeps struct {
	Registry  *Registry
	Collector port.FingerprintCollector
	Local     port.LocalAssessor
	Resolver  port.FlagResolver
	Telemetry port.TelemetryEmitter
	Recorder  port.ComparisonRecorder
	Logger    *slog.Logger

	// LookupEnv reads the runtime overrides. Defaults to os.LookupEnv.
	LookupEnv LookupFunc
	Now       func() time.Time
}

// Engine selects a pipeline version per call and runs it.
type Engine struct {
	registry  *Registry
	collector port.FingerprintCollector
	local     port.LocalAssessor
	resolver  port.FlagResolver
	telemetry port.TelemetryEmitter
	recorder  port.ComparisonRecorder
	logger    *slog.Logger
	lookupEnv LookupFunc
	now       func() time.Time
}

// NewEngine wires an Engine. A nil local assessor uses the default rule
// assessor with the default penalties.
func NewEngine(deps EngineDeps) *Engine {
	e := &Engine{
		registry:  deps.Registry,
		collector: deps.Collector,
		local:     deps.Local,
		resolver:  deps.Resolver,
		telemetry: deps.Telemetry,
		recorder:  deps.Recorder,
		logger:    deps.Logger,
		lookupEnv: deps.LookupEnv,
		now:       deps.Now,
	}
	if e.registry == nil {
		e.registry = NewDefaultRegistry()
	}
	if e.local == nil {
		e.local = service.NewRuleAssessor(service.NewWeightedScorer(service.DefaultPenalties()))
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// settings is the effective configuration after flags and overrides.
type settings struct {
	provider   port.RemoteRiskProvider
	version    int
	failClosed bool
	shadow     bool
}

// Execute runs the fingerprint and risk-assessment steps for one login
// attempt. It either returns a complete Result or an error.
func (e *Engine) Execute(ctx context.Context, cfg Config) (Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = e.logger
	}
	overrides := ReadOverrides(e.lookupEnv)
	eff := e.resolve(cfg, overrides)
	logger.Debug("pipeline settings resolved", slog.String("settings", eff.String()))

	if overrides.Any() {
		e.recordOverrides(cfg, overrides, logger)
	}

	plugins, err := e.validate(cfg, eff)
	if err != nil {
		return Result{}, err
	}

	version, build, fellBack, err := e.registry.Select(eff.version)
	if err != nil {
		return Result{}, err
	}
	if fellBack && cfg.Environment != environmentProduction {
		logger.Warn("unregistered pipeline version, using latest",
			slog.Int("requested", eff.version),
			slog.Int("selected", version),
		)
	}

	timeouts := cfg.Timeouts.WithDefaults()

	device, err := RunStep(ctx, StepFingerprint, timeouts.Fingerprint, func(ctx context.Context) (model.DeviceInfo, error) {
		if cfg.Fingerprint != nil {
			return cfg.Fingerprint.DeviceInfo(), nil
		}
		return e.collector.Collect(ctx)
	})
	if err != nil {
		e.auditStepError(cfg.AuditLogger, StepFingerprint, err)
		return Result{}, err
	}

	run := Run{
		Local:         e.local,
		Provider:      eff.provider,
		Audit:         cfg.AuditLogger,
		Telemetry:     e.telemetry,
		Recorder:      e.recorder,
		Logger:        logger,
		Plugins:       plugins,
		Now:           e.now,
		Device:        device,
		Context:       cfg.Context.Clone(),
		Policy:        cfg.Policy,
		Sources:       cfg.Sources,
		RemoteTimeout: timeouts.RemoteProvider,
		FailClosed:    eff.failClosed,
		ShadowMode:    eff.shadow && version >= 2,
	}
	if cfg.AuditAssessments && cfg.AuditLogger != nil {
		run.AuditHook = cfg.AuditLogger.Log
	}

	assessment, err := RunStep(ctx, StepRiskAssessment, timeouts.RiskAssessment, func(ctx context.Context) (model.RiskAssessmentResult, error) {
		return build(ctx, run)
	})
	if err != nil {
		e.auditStepError(cfg.AuditLogger, StepRiskAssessment, err)
		return Result{}, err
	}

	return newResult(device, assessment, version, run.ShadowMode), nil
}

func (e *Engine) resolve(cfg Config, o RuntimeOverrides) settings {
	eff := settings{
		version:    cfg.Version,
		shadow:     cfg.ShadowMode,
		provider:   cfg.RemoteProvider,
		failClosed: cfg.FailureMode.OrDefault() == valueobject.FailClosed,
	}
	if eff.version == 0 && e.resolver != nil {
		res := e.resolver.Resolve(cfg.Context, cfg.Rollout)
		eff.version, eff.shadow = res.Version, res.ShadowMode
	}
	if eff.version == 0 {
		if latest, _, err := e.registry.Latest(); err == nil {
			eff.version = latest
		}
	}
	if cfg.V2Halted {
		eff.version = min(eff.version, 1)
		eff.shadow = false
	}

	if o.ForceRiskV1 {
		eff.version = 1
		eff.shadow = false
	}
	if o.DisableRemoteProvider {
		eff.provider = nil
	}
	if o.FailOpenMode {
		eff.failClosed = false
	}
	return eff
}

func (e *Engine) validate(cfg Config, eff settings) (*plugin.Set, error) {
	iso := cfg.Isolation
	if iso.Environment == "" {
		iso.Environment = cfg.Environment
	}
	if iso.Logger == nil {
		iso.Logger = cfg.Logger
	}
	plugins, err := plugin.Isolate(cfg.Plugins, iso)
	if err != nil {
		return nil, err
	}

	if cfg.AuditLogger == nil && (eff.failClosed || eff.shadow || eff.provider != nil) {
		return nil, ErrMissingAuditLogger
	}
	if cfg.Fingerprint == nil && e.collector == nil {
		return nil, ErrMissingFingerprintSource
	}
	return plugins, nil
}

func (e *Engine) recordOverrides(cfg Config, o RuntimeOverrides, logger *slog.Logger) {
	active := o.Active()
	fields := map[string]string{
		"overrides": strings.Join(active, ","),
		"user_id":   cfg.Context.UserID,
		"tenant_id": cfg.Context.TenantID,
	}
	if cfg.AuditLogger != nil {
		cfg.AuditLogger.Log(model.NewAuditEntry(model.AuditKindOverrideActive, "", nil, fields))
	} else {
		logger.Warn("runtime overrides active", slog.String("overrides", fields["overrides"]))
	}
	if e.telemetry != nil {
		e.telemetry.Emit(TelemetryRuntimeOverride, map[string]any{"overrides": active})
	}
}

func (e *Engine) auditStepError(audit port.AuditLogger, step string, err error) {
	if audit == nil {
		return
	}
	audit.Log(model.NewAuditEntry(model.AuditKindStepError, step, err, nil))
}

// String describes the effective settings, for debug logging.
func (s settings) String() string {
	return fmt.Sprintf("version=%d shadow=%t remote=%t fail_closed=%t", s.version, s.shadow, s.provider != nil, s.failClosed)
}
