package dto

import (
	"time"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/pipeline"
)

// AssessLoginRequest is the input DTO for the AssessLogin use case.
type AssessLoginRequest struct {
	Fingerprint *pipeline.DeterministicFingerprint `json:"fingerprint,omitempty"`
	Context     model.RiskContext                  `json:"context"`
	Version     int                                `json:"version,omitempty"`
	ShadowMode  bool                               `json:"shadow_mode,omitempty"`
}

// AssessLoginResponse is the output DTO returned after an assessment.
type AssessLoginResponse struct {
	AssessedAt     time.Time `json:"assessed_at"`
	TriggeredRules []string  `json:"triggered_rules"`
	DeviceID       string    `json:"device_id"`
	DeviceType     string    `json:"device_type"`
	RiskLevel      string    `json:"risk_level"`
	Action         string    `json:"action"`
	BlockReason    string    `json:"block_reason,omitempty"`
	RiskScore      int       `json:"risk_score"`
	Version        int       `json:"version"`
	ShadowMode     bool      `json:"shadow_mode"`
}

// FromResult maps a pipeline result to the response DTO.
func FromResult(r pipeline.Result, assessedAt time.Time) AssessLoginResponse {
	a := r.RiskAssessment()
	d := r.DeviceInfo()
	return AssessLoginResponse{
		DeviceID:       d.DeviceID,
		DeviceType:     string(d.EffectiveType()),
		RiskScore:      a.RiskScore(),
		RiskLevel:      a.RiskLevel().String(),
		Action:         a.DecisionHint().Action.String(),
		BlockReason:    a.DecisionHint().BlockReason,
		TriggeredRules: a.TriggeredRules(),
		Version:        r.Version(),
		ShadowMode:     r.ShadowMode(),
		AssessedAt:     assessedAt,
	}
}
