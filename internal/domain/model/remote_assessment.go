package model

import "math"

// RemoteAssessment is the answer of an external risk provider.
type RemoteAssessment struct {
	Provider   string   `json:"provider,omitempty"`
	RiskLevel  string   `json:"risk_level"`
	Reasons    []string `json:"reasons,omitempty"`
	RiskScore  float64  `json:"risk_score"`
	Confidence float64  `json:"confidence"`
}

// Untrusted reports whether the answer must be treated as fail-closed:
// zero confidence or a score that is not a finite number.
func (r RemoteAssessment) Untrusted() bool {
	return r.Confidence == 0 || math.IsNaN(r.RiskScore) || math.IsInf(r.RiskScore, 0)
}
