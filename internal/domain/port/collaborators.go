package port

import (
	"context"
	"time"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/plugin"
)

// FingerprintCollector produces device information for the current request.
type FingerprintCollector interface {
	Collect(ctx context.Context) (model.DeviceInfo, error)
}

// AuditHook receives audit entries produced while assessing.
type AuditHook func(entry model.AuditEntry)

// AssessmentRequest bundles the inputs of one local assessment.
type AssessmentRequest struct {
	Plugins   *plugin.Set
	AuditHook AuditHook
	Device    model.DeviceInfo
	Context   model.RiskContext
	Policy    model.Policy
}

// LocalAssessor runs the rule-based assessment. It is synchronous and
// deterministic for a given request.
type LocalAssessor interface {
	Assess(req AssessmentRequest) (model.RiskAssessmentResult, error)
}

// RemoteRiskProvider queries an external risk intelligence service.
type RemoteRiskProvider interface {
	Assess(ctx context.Context, device model.DeviceInfo, rc model.RiskContext, timeout time.Duration) (model.RemoteAssessment, error)
}

// FlagResolution is the version and shadow mode chosen for a request.
type FlagResolution struct {
	Version    int
	ShadowMode bool
}

// FlagResolver decides which pipeline version serves a request.
type FlagResolver interface {
	Resolve(rc model.RiskContext, rollout model.RolloutConfig) FlagResolution
}

// AuditLogger records failures and notable decisions. It is mandatory
// whenever fail-closed, shadow or remote-provider paths are enabled.
type AuditLogger interface {
	Log(entry model.AuditEntry)
}

// TelemetryEmitter is fire-and-forget. Implementations must not block.
type TelemetryEmitter interface {
	Emit(name string, payload map[string]any)
}

// ComparisonRecorder receives every shadow comparison, matching or not.
type ComparisonRecorder interface {
	Record(ctx context.Context, c model.ShadowComparison) error
}

// GeoLocator resolves an IP address to a location. found is false when the
// address is not in the database.
type GeoLocator interface {
	Locate(ip string) (geo model.Geo, found bool, err error)
}

// MetricsSource produces the current disagreement metrics for the guard.
type MetricsSource interface {
	Snapshot() model.DisagreementMetrics
}
