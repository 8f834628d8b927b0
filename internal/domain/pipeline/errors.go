package pipeline

import (
	"errors"
	"fmt"
)

// Configuration errors. They are returned before any step runs.
var (
	ErrNoFallbackVersion        = errors.New("no latest pipeline version registered")
	ErrMissingAuditLogger       = errors.New("audit logger is required for fail-closed, shadow or remote provider paths")
	ErrMissingFingerprintSource = errors.New("no fingerprint collector or deterministic fingerprint configured")
	ErrInvalidVersion           = errors.New("invalid pipeline version")
)

// ErrNoRiskSources is returned when aggregation has nothing to combine.
var ErrNoRiskSources = errors.New("no risk sources to aggregate")

// Step names.
const (
	StepFingerprint    = "fingerprint"
	StepRiskAssessment = "risk_assessment"
)

// StepError tags a failure with the pipeline step it happened in. Timeouts
// and cancellation surface as context.DeadlineExceeded and context.Canceled.
type StepError struct {
	Err  error
	Step string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ProviderError wraps a remote provider failure.
type ProviderError struct {
	Err      error
	Provider string
}

func (e *ProviderError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("remote risk provider: %v", e.Err)
	}
	return fmt.Sprintf("remote risk provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
