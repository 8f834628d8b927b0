package service

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/plugin"
	"github.com/bibbank/loginrisk/internal/domain/port"
	"github.com/bibbank/loginrisk/internal/domain/valueobject"
)

const (
	ruleKeyPrefix   = "rule:"
	blockReasonRisk = "risk_score_exceeded"
)

// RuleAssessor is the default local assessor. It scores with the weighted
// scorer, lets plugins extend each stage, and maps the score onto the
// policy thresholds.
type RuleAssessor struct {
	scorer *WeightedScorer
}

// NewRuleAssessor creates a RuleAssessor backed by scorer.
func NewRuleAssessor(scorer *WeightedScorer) *RuleAssessor {
	return &RuleAssessor{scorer: scorer}
}

var _ port.LocalAssessor = (*RuleAssessor)(nil)

// Assess runs one deterministic local assessment.
func (a *RuleAssessor) Assess(req port.AssessmentRequest) (model.RiskAssessmentResult, error) {
	policy := req.Policy.WithDefaults()
	weights := policy.Weights
	if weights.IsZero() {
		weights = DefaultRiskWeights()
	}

	scoring, err := req.Plugins.ExtendScoring(plugin.NewStageContext(nil), req.Context)
	if err != nil {
		return model.RiskAssessmentResult{}, err
	}

	b, err := a.scorer.Breakdown(ScoreInput{Device: req.Device, Context: req.Context}, weights)
	if err != nil {
		return model.RiskAssessmentResult{}, err
	}

	ruleCtx := plugin.NewStageContext(map[string]string{"score": strconv.Itoa(b.Total)})
	ruleCtx, err = req.Plugins.ExtendRule(ruleCtx, req.Context)
	if err != nil {
		return model.RiskAssessmentResult{}, err
	}

	triggered := slices.Clone(b.Signals)
	for _, k := range ruleCtx.Keys() {
		if name, ok := strings.CutPrefix(k, ruleKeyPrefix); ok && name != "" && !slices.Contains(triggered, name) {
			triggered = append(triggered, name)
		}
	}

	level := valueobject.RiskLevelFromScore(b.Total)
	hint := model.DecisionHint{
		Action: valueobject.DecisionActionFromScore(b.Total, policy.MFAThreshold, policy.BlockThreshold),
	}
	if hint.Action.IsBlock() {
		hint.BlockReason = blockReasonRisk
	}

	assessCtx := plugin.NewStageContext(map[string]string{
		"score":  strconv.Itoa(b.Total),
		"level":  level.String(),
		"action": hint.Action.String(),
	})
	assessCtx, err = req.Plugins.ExtendAssessment(assessCtx, req.Context)
	if err != nil {
		return model.RiskAssessmentResult{}, err
	}

	payload := map[string]string{
		"device_score":   formatScore(b.Device),
		"geo_score":      formatScore(b.Geo),
		"network_score":  formatScore(b.Network),
		"velocity_score": formatScore(b.Velocity),
		"valid_ip":       strconv.FormatBool(b.ValidIP),
	}
	for k, v := range scoring.Attributes() {
		payload["scoring."+k] = v
	}
	for k, v := range assessCtx.Attributes() {
		payload["assessment."+k] = v
	}

	result, err := model.NewRiskAssessmentResult(b.Total, level, triggered, hint, payload)
	if err != nil {
		return model.RiskAssessmentResult{}, fmt.Errorf("build assessment: %w", err)
	}

	if req.AuditHook != nil {
		req.AuditHook(model.NewAuditEntry(model.AuditKindAssessment, "risk_assessment", nil, result.Assessment()))
	}
	return result, nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
