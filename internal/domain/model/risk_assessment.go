package model

import (
	"fmt"
	"maps"
	"slices"

	"github.com/bibbank/loginrisk/internal/domain/valueobject"
)

// DecisionHint tells the login flow what to do next.
type DecisionHint struct {
	Action      valueobject.DecisionAction
	BlockReason string
}

// RiskAssessmentResult is the immutable outcome of one risk assessment. All
// slice and map accessors return copies.
type RiskAssessmentResult struct {
	level          valueobject.RiskLevel
	hint           DecisionHint
	triggeredRules []string
	assessment     map[string]string
	riskScore      int
}

// NewRiskAssessmentResult validates and freezes an assessment.
func NewRiskAssessmentResult(
	riskScore int,
	level valueobject.RiskLevel,
	triggeredRules []string,
	hint DecisionHint,
	assessment map[string]string,
) (RiskAssessmentResult, error) {
	if riskScore < 0 || riskScore > 100 {
		return RiskAssessmentResult{}, fmt.Errorf("risk score must be between 0 and 100, got %d", riskScore)
	}
	if level.IsZero() {
		return RiskAssessmentResult{}, fmt.Errorf("risk level is required")
	}
	if hint.Action.IsZero() {
		return RiskAssessmentResult{}, fmt.Errorf("decision action is required")
	}
	if !hint.Action.IsBlock() && hint.BlockReason != "" {
		return RiskAssessmentResult{}, fmt.Errorf("block reason set for %s action", hint.Action)
	}

	rules := slices.Clone(triggeredRules)
	if rules == nil {
		rules = make([]string, 0)
	}
	payload := maps.Clone(assessment)
	if payload == nil {
		payload = make(map[string]string)
	}

	return RiskAssessmentResult{
		riskScore:      riskScore,
		level:          level,
		triggeredRules: rules,
		hint:           hint,
		assessment:     payload,
	}, nil
}

// CriticalAssessment is the synthetic result used when a component fails closed.
func CriticalAssessment(reason string, triggered ...string) RiskAssessmentResult {
	return RiskAssessmentResult{
		riskScore:      100,
		level:          valueobject.RiskLevelCritical,
		triggeredRules: append(make([]string, 0, len(triggered)), triggered...),
		hint:           DecisionHint{Action: valueobject.ActionBlock, BlockReason: reason},
		assessment:     map[string]string{"fail_closed": "true", "reason": reason},
	}
}

// --- Accessors ---

func (r RiskAssessmentResult) RiskScore() int                   { return r.riskScore }
func (r RiskAssessmentResult) RiskLevel() valueobject.RiskLevel { return r.level }
func (r RiskAssessmentResult) DecisionHint() DecisionHint       { return r.hint }
func (r RiskAssessmentResult) TriggeredRules() []string         { return slices.Clone(r.triggeredRules) }
func (r RiskAssessmentResult) Assessment() map[string]string    { return maps.Clone(r.assessment) }

// IsZero reports whether r was never populated.
func (r RiskAssessmentResult) IsZero() bool {
	return r.level.IsZero()
}

// Equal reports whether two results carry the same decision-relevant outcome:
// score, level, action, block reason and triggered rules.
func (r RiskAssessmentResult) Equal(other RiskAssessmentResult) bool {
	return r.riskScore == other.riskScore &&
		r.level.Equal(other.level) &&
		r.hint == other.hint &&
		slices.Equal(r.triggeredRules, other.triggeredRules)
}
