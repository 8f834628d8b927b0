package pipeline

import "os"

// Environment variables holding the runtime kill switches. "1" enables.
const (
	EnvForceRiskV1           = "FORCE_RISK_V1"
	EnvDisableRemoteProvider = "DISABLE_REMOTE_PROVIDER"
	EnvFailOpenMode          = "FAIL_OPEN_MODE"
)

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// RuntimeOverrides are operator kill switches. They are read on every call
// and take priority over feature-flag resolution.
type RuntimeOverrides struct {
	ForceRiskV1           bool `json:"force_risk_v1"`
	DisableRemoteProvider bool `json:"disable_remote_provider"`
	FailOpenMode          bool `json:"fail_open_mode"`
}

// ReadOverrides reads the switches through lookup, or the process
// environment when lookup is nil.
func ReadOverrides(lookup LookupFunc) RuntimeOverrides {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	on := func(key string) bool {
		v, ok := lookup(key)
		return ok && v == "1"
	}
	return RuntimeOverrides{
		ForceRiskV1:           on(EnvForceRiskV1),
		DisableRemoteProvider: on(EnvDisableRemoteProvider),
		FailOpenMode:          on(EnvFailOpenMode),
	}
}

// Active returns the names of the switches that are on.
func (o RuntimeOverrides) Active() []string {
	var active []string
	if o.ForceRiskV1 {
		active = append(active, EnvForceRiskV1)
	}
	if o.DisableRemoteProvider {
		active = append(active, EnvDisableRemoteProvider)
	}
	if o.FailOpenMode {
		active = append(active, EnvFailOpenMode)
	}
	return active
}

// Any reports whether at least one switch is on.
func (o RuntimeOverrides) Any() bool {
	return o.ForceRiskV1 || o.DisableRemoteProvider || o.FailOpenMode
}
