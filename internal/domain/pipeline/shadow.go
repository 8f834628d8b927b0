package pipeline

import (
	"strconv"
	"time"

	"github.com/bibbank/loginrisk/internal/domain/model"
)

// Classify compares the live (v1) and candidate (v2) results.
func Classify(v1, v2 model.RiskAssessmentResult) string {
	a1, a2 := v1.DecisionHint().Action.Rank(), v2.DecisionHint().Action.Rank()
	l1, l2 := v1.RiskLevel().Rank(), v2.RiskLevel().Rank()

	switch {
	case a2 < a1 || (a2 == a1 && l2 < l1):
		return model.ComparisonV2Weaker
	case a2 > a1 || l2 > l1:
		return model.ComparisonV2Stronger
	case v1.RiskScore() != v2.RiskScore():
		return model.ComparisonScoreDrift
	default:
		return model.ComparisonMatch
	}
}

// NewComparison builds the comparison record for one shadow run.
func NewComparison(rc model.RiskContext, v1, v2 model.RiskAssessmentResult, now time.Time) model.ShadowComparison {
	return model.ShadowComparison{
		ComparedAt:     now.UTC(),
		Classification: Classify(v1, v2),
		UserID:         rc.UserID,
		TenantID:       rc.TenantID,
		V1Score:        v1.RiskScore(),
		V2Score:        v2.RiskScore(),
		V1Level:        v1.RiskLevel().String(),
		V2Level:        v2.RiskLevel().String(),
		V1Action:       v1.DecisionHint().Action.String(),
		V2Action:       v2.DecisionHint().Action.String(),
	}
}

func comparisonFields(c model.ShadowComparison) map[string]string {
	return map[string]string{
		"classification": c.Classification,
		"user_id":        c.UserID,
		"tenant_id":      c.TenantID,
		"v1_score":       strconv.Itoa(c.V1Score),
		"v2_score":       strconv.Itoa(c.V2Score),
		"v1_level":       c.V1Level,
		"v2_level":       c.V2Level,
		"v1_action":      c.V1Action,
		"v2_action":      c.V2Action,
	}
}

func comparisonPayload(c model.ShadowComparison) map[string]any {
	return map[string]any{
		"classification": c.Classification,
		"tenant_id":      c.TenantID,
		"v1":             map[string]any{"score": c.V1Score, "level": c.V1Level, "action": c.V1Action},
		"v2":             map[string]any{"score": c.V2Score, "level": c.V2Level, "action": c.V2Action},
	}
}
