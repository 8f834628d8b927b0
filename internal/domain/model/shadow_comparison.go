package model

import "time"

// Comparison classifications between the live (v1) and candidate (v2) engines.
const (
	ComparisonMatch      = "match"
	ComparisonV2Weaker   = "v2_weaker"
	ComparisonV2Stronger = "v2_stronger"
	ComparisonScoreDrift = "score_drift"
)

// ShadowComparison records the outcome of one shadow-mode comparison.
type ShadowComparison struct {
	ComparedAt     time.Time `json:"compared_at"`
	Classification string    `json:"classification"`
	UserID         string    `json:"user_id,omitempty"`
	TenantID       string    `json:"tenant_id,omitempty"`
	V1Level        string    `json:"v1_level"`
	V2Level        string    `json:"v2_level"`
	V1Action       string    `json:"v1_action"`
	V2Action       string    `json:"v2_action"`
	V1Score        int       `json:"v1_score"`
	V2Score        int       `json:"v2_score"`
}

// Disagrees reports whether the engines produced different outcomes.
func (c ShadowComparison) Disagrees() bool {
	return c.Classification != ComparisonMatch
}

// V2Weaker reports whether the candidate engine was more permissive.
func (c ShadowComparison) V2Weaker() bool {
	return c.Classification == ComparisonV2Weaker
}
