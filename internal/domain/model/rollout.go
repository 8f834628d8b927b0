package model

import (
	"slices"
	"time"
)

// Auto-rollback defaults.
const (
	DefaultMinComparisons   = 100
	DefaultRollbackPercent  = 5.0
	DefaultEvaluationWindow = 60 * time.Second
)

// AutoRollbackPolicy decides when the guard pulls v2 traffic.
type AutoRollbackPolicy struct {
	Enabled          bool          `json:"enabled" yaml:"enabled"`
	MinComparisons   int           `json:"min_comparisons" yaml:"min_comparisons"`
	ThresholdPercent float64       `json:"threshold_percent" yaml:"threshold_percent"`
	Window           time.Duration `json:"window" yaml:"window"`
}

// DefaultAutoRollbackPolicy returns an enabled policy with default limits.
func DefaultAutoRollbackPolicy() AutoRollbackPolicy {
	return AutoRollbackPolicy{
		Enabled:          true,
		MinComparisons:   DefaultMinComparisons,
		ThresholdPercent: DefaultRollbackPercent,
		Window:           DefaultEvaluationWindow,
	}
}

// WithDefaults fills unset limits without touching Enabled.
func (p AutoRollbackPolicy) WithDefaults() AutoRollbackPolicy {
	if p.MinComparisons <= 0 {
		p.MinComparisons = DefaultMinComparisons
	}
	if p.ThresholdPercent <= 0 {
		p.ThresholdPercent = DefaultRollbackPercent
	}
	if p.Window <= 0 {
		p.Window = DefaultEvaluationWindow
	}
	return p
}

// RolloutConfig is the process-wide traffic split between pipeline versions.
// Percentages are 0..100. Buckets are 0..99.
type RolloutConfig struct {
	TenantAllowList  []string           `json:"tenant_allow_list,omitempty" yaml:"tenant_allow_list"`
	BucketAllowList  []int              `json:"bucket_allow_list,omitempty" yaml:"bucket_allow_list"`
	AutoRollback     AutoRollbackPolicy `json:"auto_rollback" yaml:"auto_rollback"`
	V2Percentage     int                `json:"v2_percentage" yaml:"v2_percentage"`
	ShadowPercentage int                `json:"shadow_percentage" yaml:"shadow_percentage"`
}

// Clone returns a copy that shares no slices with c.
func (c RolloutConfig) Clone() RolloutConfig {
	out := c
	out.TenantAllowList = slices.Clone(c.TenantAllowList)
	out.BucketAllowList = slices.Clone(c.BucketAllowList)
	return out
}

// Disabled returns the config with all v2 and shadow traffic removed.
func (c RolloutConfig) Disabled() RolloutConfig {
	out := c.Clone()
	out.V2Percentage = 0
	out.ShadowPercentage = 0
	out.TenantAllowList = nil
	out.BucketAllowList = nil
	return out
}

// DisagreementMetrics is the dashboard view of shadow comparisons in the
// current evaluation window.
type DisagreementMetrics struct {
	Classification     string  `json:"classification"`
	TotalComparisons   int     `json:"total_comparisons"`
	V2WeakerPercentage float64 `json:"v2_weaker_percentage"`
}

// GuardSnapshot is a point-in-time copy of the safety guard state.
type GuardSnapshot struct {
	LastUpdated    time.Time           `json:"last_updated"`
	State          string              `json:"state"`
	RollbackReason string              `json:"rollback_reason,omitempty"`
	Metrics        DisagreementMetrics `json:"metrics"`
	Rollout        RolloutConfig       `json:"rollout"`
	RolledBack     bool                `json:"rolled_back"`
}
