package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/pipeline"
	"github.com/bibbank/loginrisk/internal/domain/plugin"
	"github.com/bibbank/loginrisk/internal/domain/port"
	"github.com/bibbank/loginrisk/internal/domain/valueobject"
)

// --- Test doubles ---

type auditSpy struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (a *auditSpy) Log(e model.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *auditSpy) count(kind string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type telemetrySpy struct {
	mu     sync.Mutex
	events []string
}

func (s *telemetrySpy) Emit(name string, _ map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, name)
}

func (s *telemetrySpy) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e == name {
			n++
		}
	}
	return n
}

type recorderSpy struct {
	mu          sync.Mutex
	comparisons []model.ShadowComparison
}

func (r *recorderSpy) Record(_ context.Context, c model.ShadowComparison) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comparisons = append(r.comparisons, c)
	return nil
}

type stubProvider struct {
	err    error
	answer model.RemoteAssessment
	calls  int
}

func (p *stubProvider) Assess(context.Context, model.DeviceInfo, model.RiskContext, time.Duration) (model.RemoteAssessment, error) {
	p.calls++
	return p.answer, p.err
}

type stubResolver struct {
	res port.FlagResolution
}

func (r stubResolver) Resolve(model.RiskContext, model.RolloutConfig) port.FlagResolution {
	return r.res
}

type blockingCollector struct{}

func (blockingCollector) Collect(ctx context.Context) (model.DeviceInfo, error) {
	<-ctx.Done()
	return model.DeviceInfo{}, ctx.Err()
}

type failingPlugin struct{}

func (failingPlugin) ID() string { return "broken-enricher" }

func (failingPlugin) ExtendScoringContext(plugin.StageContext, model.RiskContext) (plugin.StageContext, error) {
	return plugin.StageContext{}, errors.New("enrichment unavailable")
}

func env(vars map[string]string) pipeline.LookupFunc {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

// lowRiskConfig scores 9: a desktop-sized screen with no OS or browser.
func lowRiskConfig(audit port.AuditLogger) pipeline.Config {
	return pipeline.Config{
		Context: model.RiskContext{
			IP:       "203.0.113.9",
			UserID:   "user-1",
			TenantID: "tenant-1",
			Geo:      &model.Geo{Country: "US"},
		},
		Fingerprint: &pipeline.DeterministicFingerprint{DeviceID: "dev-1", ScreenWidth: 1280, ScreenHeight: 720},
		AuditLogger: audit,
		Environment: "development",
	}
}

func highRemote() *stubProvider {
	return &stubProvider{answer: model.RemoteAssessment{RiskScore: 90, RiskLevel: "critical", Confidence: 0.9}}
}

// --- Tests ---

func TestEngine_V1(t *testing.T) {
	engine := pipeline.NewEngine(pipeline.EngineDeps{LookupEnv: env(nil)})
	cfg := lowRiskConfig(&auditSpy{})
	cfg.Version = 1

	res, err := engine.Execute(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Version())
	assert.Equal(t, valueobject.DeviceDesktop, res.DeviceInfo().DeviceType)
	assert.Equal(t, 9, res.RiskAssessment().RiskScore())
	assert.Equal(t, valueobject.ActionLogin, res.RiskAssessment().DecisionHint().Action)
}

func TestEngine_ForceRiskV1Override(t *testing.T) {
	audit := &auditSpy{}
	telemetry := &telemetrySpy{}
	provider := highRemote()
	engine := pipeline.NewEngine(pipeline.EngineDeps{
		Resolver:  stubResolver{res: port.FlagResolution{Version: 2, ShadowMode: true}},
		Telemetry: telemetry,
		LookupEnv: env(map[string]string{pipeline.EnvForceRiskV1: "1"}),
	})
	cfg := lowRiskConfig(audit)
	cfg.RemoteProvider = provider

	res, err := engine.Execute(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Version())
	assert.False(t, res.ShadowMode())
	assert.Zero(t, provider.calls)
	assert.Equal(t, 1, audit.count(model.AuditKindOverrideActive))
	assert.Equal(t, 1, telemetry.count(pipeline.TelemetryRuntimeOverride))
}

func TestEngine_V2HaltedCapsExplicitVersion(t *testing.T) {
	provider := highRemote()
	engine := pipeline.NewEngine(pipeline.EngineDeps{LookupEnv: env(nil)})
	cfg := lowRiskConfig(&auditSpy{})
	cfg.RemoteProvider = provider
	cfg.Version = 2
	cfg.ShadowMode = true
	cfg.V2Halted = true

	res, err := engine.Execute(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Version())
	assert.False(t, res.ShadowMode())
	assert.Zero(t, provider.calls)
}

func TestEngine_UnregisteredVersionFallsBackToLatest(t *testing.T) {
	var buf bytes.Buffer
	engine := pipeline.NewEngine(pipeline.EngineDeps{LookupEnv: env(nil)})
	cfg := lowRiskConfig(&auditSpy{})
	cfg.Version = 7
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	res, err := engine.Execute(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Version())
	assert.Contains(t, buf.String(), "unregistered pipeline version")
}

func TestEngine_NoFallbackVersion(t *testing.T) {
	engine := pipeline.NewEngine(pipeline.EngineDeps{Registry: pipeline.NewRegistry(), LookupEnv: env(nil)})

	_, err := engine.Execute(context.Background(), lowRiskConfig(&auditSpy{}))
	assert.ErrorIs(t, err, pipeline.ErrNoFallbackVersion)
}

func TestEngine_ShadowModeReturnsV1(t *testing.T) {
	t.Run("disagreement", func(t *testing.T) {
		audit := &auditSpy{}
		telemetry := &telemetrySpy{}
		recorder := &recorderSpy{}
		engine := pipeline.NewEngine(pipeline.EngineDeps{Telemetry: telemetry, Recorder: recorder, LookupEnv: env(nil)})

		cfg := lowRiskConfig(audit)
		cfg.Version = 2
		cfg.ShadowMode = true
		cfg.RemoteProvider = highRemote()

		res, err := engine.Execute(context.Background(), cfg)
		require.NoError(t, err)

		v1cfg := lowRiskConfig(&auditSpy{})
		v1cfg.Version = 1
		v1, err := engine.Execute(context.Background(), v1cfg)
		require.NoError(t, err)

		assert.True(t, res.RiskAssessment().Equal(v1.RiskAssessment()))
		assert.True(t, res.ShadowMode())
		assert.Equal(t, 1, audit.count(model.AuditKindShadowDisagree))
		assert.Equal(t, 1, telemetry.count(pipeline.TelemetryShadowDisagreement))
		require.Len(t, recorder.comparisons, 1)
		assert.Equal(t, model.ComparisonV2Stronger, recorder.comparisons[0].Classification)
		assert.Equal(t, 41, recorder.comparisons[0].V2Score)
	})

	t.Run("exact match", func(t *testing.T) {
		audit := &auditSpy{}
		telemetry := &telemetrySpy{}
		recorder := &recorderSpy{}
		engine := pipeline.NewEngine(pipeline.EngineDeps{Telemetry: telemetry, Recorder: recorder, LookupEnv: env(nil)})

		cfg := lowRiskConfig(audit)
		cfg.Version = 2
		cfg.ShadowMode = true

		_, err := engine.Execute(context.Background(), cfg)
		require.NoError(t, err)

		assert.Zero(t, audit.count(model.AuditKindShadowDisagree))
		assert.Zero(t, telemetry.count(pipeline.TelemetryShadowDisagreement))
		require.Len(t, recorder.comparisons, 1)
		assert.Equal(t, model.ComparisonMatch, recorder.comparisons[0].Classification)
	})
}

func TestEngine_ProviderErrors(t *testing.T) {
	t.Run("fail closed synthesizes critical source", func(t *testing.T) {
		audit := &auditSpy{}
		engine := pipeline.NewEngine(pipeline.EngineDeps{LookupEnv: env(nil)})
		cfg := lowRiskConfig(audit)
		cfg.Version = 2
		cfg.RemoteProvider = &stubProvider{err: errors.New("connection refused")}

		res, err := engine.Execute(context.Background(), cfg)
		require.NoError(t, err)

		hint := res.RiskAssessment().DecisionHint()
		assert.Equal(t, valueobject.ActionBlock, hint.Action)
		assert.Equal(t, pipeline.BlockReasonCritical, hint.BlockReason)
		assert.Equal(t, 45, res.RiskAssessment().RiskScore())
		assert.Equal(t, 1, audit.count(model.AuditKindProviderError))
	})

	t.Run("fail open drops the source with a trace", func(t *testing.T) {
		audit := &auditSpy{}
		telemetry := &telemetrySpy{}
		engine := pipeline.NewEngine(pipeline.EngineDeps{Telemetry: telemetry, LookupEnv: env(nil)})
		cfg := lowRiskConfig(audit)
		cfg.Version = 2
		cfg.FailureMode = valueobject.FailOpen
		cfg.RemoteProvider = &stubProvider{err: errors.New("connection refused")}

		res, err := engine.Execute(context.Background(), cfg)
		require.NoError(t, err)

		assert.Equal(t, 9, res.RiskAssessment().RiskScore())
		assert.Equal(t, valueobject.ActionLogin, res.RiskAssessment().DecisionHint().Action)
		assert.Equal(t, 1, audit.count(model.AuditKindProviderError))
		assert.Equal(t, 1, telemetry.count(pipeline.TelemetryProviderError))
	})

	t.Run("FAIL_OPEN_MODE override", func(t *testing.T) {
		engine := pipeline.NewEngine(pipeline.EngineDeps{LookupEnv: env(map[string]string{pipeline.EnvFailOpenMode: "1"})})
		cfg := lowRiskConfig(&auditSpy{})
		cfg.Version = 2
		cfg.RemoteProvider = &stubProvider{err: errors.New("connection refused")}

		res, err := engine.Execute(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, valueobject.ActionLogin, res.RiskAssessment().DecisionHint().Action)
	})

	t.Run("zero confidence is fail closed", func(t *testing.T) {
		engine := pipeline.NewEngine(pipeline.EngineDeps{LookupEnv: env(nil)})
		cfg := lowRiskConfig(&auditSpy{})
		cfg.Version = 2
		cfg.RemoteProvider = &stubProvider{answer: model.RemoteAssessment{RiskScore: 10, RiskLevel: "low"}}

		res, err := engine.Execute(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, valueobject.ActionBlock, res.RiskAssessment().DecisionHint().Action)
	})

	t.Run("DISABLE_REMOTE_PROVIDER skips the call", func(t *testing.T) {
		provider := highRemote()
		engine := pipeline.NewEngine(pipeline.EngineDeps{LookupEnv: env(map[string]string{pipeline.EnvDisableRemoteProvider: "1"})})
		cfg := lowRiskConfig(&auditSpy{})
		cfg.Version = 2
		cfg.RemoteProvider = provider

		res, err := engine.Execute(context.Background(), cfg)
		require.NoError(t, err)
		assert.Zero(t, provider.calls)
		assert.Equal(t, 9, res.RiskAssessment().RiskScore())
	})
}

func TestEngine_ConfigurationErrors(t *testing.T) {
	t.Run("missing audit logger", func(t *testing.T) {
		engine := pipeline.NewEngine(pipeline.EngineDeps{LookupEnv: env(nil)})

		_, err := engine.Execute(context.Background(), lowRiskConfig(nil))
		assert.ErrorIs(t, err, pipeline.ErrMissingAuditLogger)
	})

	t.Run("fail open without remote or shadow needs no audit logger", func(t *testing.T) {
		engine := pipeline.NewEngine(pipeline.EngineDeps{LookupEnv: env(nil)})
		cfg := lowRiskConfig(nil)
		cfg.FailureMode = valueobject.FailOpen

		_, err := engine.Execute(context.Background(), cfg)
		assert.NoError(t, err)
	})

	t.Run("too many plugins", func(t *testing.T) {
		engine := pipeline.NewEngine(pipeline.EngineDeps{LookupEnv: env(nil)})
		cfg := lowRiskConfig(&auditSpy{})
		cfg.Isolation.MaxPlugins = 1
		cfg.Plugins = []plugin.Plugin{failingPlugin{}, failingPlugin{}}

		_, err := engine.Execute(context.Background(), cfg)
		assert.ErrorIs(t, err, plugin.ErrTooManyPlugins)
	})

	t.Run("no fingerprint source", func(t *testing.T) {
		engine := pipeline.NewEngine(pipeline.EngineDeps{LookupEnv: env(nil)})
		cfg := lowRiskConfig(&auditSpy{})
		cfg.Fingerprint = nil

		_, err := engine.Execute(context.Background(), cfg)
		assert.ErrorIs(t, err, pipeline.ErrMissingFingerprintSource)
	})
}

func TestEngine_PluginFailures(t *testing.T) {
	t.Run("fail closed aborts naming the plugin", func(t *testing.T) {
		engine := pipeline.NewEngine(pipeline.EngineDeps{LookupEnv: env(nil)})
		cfg := lowRiskConfig(&auditSpy{})
		cfg.Plugins = []plugin.Plugin{failingPlugin{}}

		_, err := engine.Execute(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken-enricher")

		var se *pipeline.StepError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, pipeline.StepRiskAssessment, se.Step)
	})

	t.Run("fail open leaves the result unchanged", func(t *testing.T) {
		engine := pipeline.NewEngine(pipeline.EngineDeps{LookupEnv: env(nil)})
		cfg := lowRiskConfig(&auditSpy{})
		cfg.Version = 1
		cfg.Plugins = []plugin.Plugin{failingPlugin{}}
		cfg.Isolation.FailureMode = valueobject.FailOpen

		res, err := engine.Execute(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, 9, res.RiskAssessment().RiskScore())
	})
}

func TestEngine_Cancellation(t *testing.T) {
	audit := &auditSpy{}
	engine := pipeline.NewEngine(pipeline.EngineDeps{Collector: blockingCollector{}, LookupEnv: env(nil)})
	cfg := lowRiskConfig(audit)
	cfg.Fingerprint = nil

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := engine.Execute(ctx, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var se *pipeline.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, pipeline.StepFingerprint, se.Step)
	assert.Equal(t, 1, audit.count(model.AuditKindStepError))
}

func TestEngine_FingerprintTimeout(t *testing.T) {
	engine := pipeline.NewEngine(pipeline.EngineDeps{Collector: blockingCollector{}, LookupEnv: env(nil)})
	cfg := lowRiskConfig(&auditSpy{})
	cfg.Fingerprint = nil
	cfg.Timeouts.Fingerprint = 20 * time.Millisecond

	_, err := engine.Execute(context.Background(), cfg)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
