package pipeline

import "github.com/bibbank/loginrisk/internal/domain/model"

// Result is the immutable outcome of one pipeline execution.
type Result struct {
	device     model.DeviceInfo
	assessment model.RiskAssessmentResult
	version    int
	shadowMode bool
}

func newResult(device model.DeviceInfo, assessment model.RiskAssessmentResult, version int, shadow bool) Result {
	return Result{device: device, assessment: assessment, version: version, shadowMode: shadow}
}

func (r Result) DeviceInfo() model.DeviceInfo                 { return r.device }
func (r Result) RiskAssessment() model.RiskAssessmentResult { return r.assessment }

// Version is the pipeline version that served the call.
func (r Result) Version() int { return r.version }

// ShadowMode reports whether a shadow comparison ran.
func (r Result) ShadowMode() bool { return r.shadowMode }
