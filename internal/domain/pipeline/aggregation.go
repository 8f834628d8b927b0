package pipeline

import (
	"math"
	"slices"
	"strconv"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/valueobject"
)

// Block reasons.
const (
	BlockReasonCritical  = "critical_risk"
	BlockReasonThreshold = "risk_score_exceeded"
)

// Default source weights for v2 aggregation.
const (
	DefaultLocalWeight  = 0.6
	DefaultRemoteWeight = 0.4
)

// SourceWeights sets how much each source contributes to the aggregate.
type SourceWeights struct {
	Local  float64 `json:"local" yaml:"local"`
	Remote float64 `json:"remote" yaml:"remote"`
}

// WithDefaults fills non-positive weights.
func (w SourceWeights) WithDefaults() SourceWeights {
	if w.Local <= 0 {
		w.Local = DefaultLocalWeight
	}
	if w.Remote <= 0 {
		w.Remote = DefaultRemoteWeight
	}
	return w
}

// RiskSource is one weighted contributor to an aggregated decision.
type RiskSource struct {
	Name         string
	Result       model.RiskAssessmentResult
	Weight       float64
	IsFailClosed bool
}

// criticalSource is the synthetic source used when a component fails closed.
func criticalSource(name string, weight float64) RiskSource {
	return RiskSource{
		Name:         name,
		Result:       model.CriticalAssessment(BlockReasonCritical, name+"_failure"),
		Weight:       weight,
		IsFailClosed: true,
	}
}

// Aggregate combines sources by weight. The score is the weight-normalized
// mean, triggered rules are the union in source order, and any fail-closed
// source forces a block.
func Aggregate(sources []RiskSource, policy model.Policy) (model.RiskAssessmentResult, error) {
	if len(sources) == 0 {
		return model.RiskAssessmentResult{}, ErrNoRiskSources
	}
	policy = policy.WithDefaults()

	var weighted, totalWeight float64
	var failClosed bool
	triggered := make([]string, 0)
	payload := map[string]string{"sources": strconv.Itoa(len(sources))}

	for i, s := range sources {
		w := s.Weight
		if math.IsNaN(w) || w < 0 {
			w = 0
		}
		weighted += float64(s.Result.RiskScore()) * w
		totalWeight += w
		failClosed = failClosed || s.IsFailClosed

		for _, r := range s.Result.TriggeredRules() {
			if !slices.Contains(triggered, r) {
				triggered = append(triggered, r)
			}
		}

		key := s.Name
		if key == "" {
			key = "source_" + strconv.Itoa(i)
		}
		payload[key+".score"] = strconv.Itoa(s.Result.RiskScore())
		payload[key+".weight"] = strconv.FormatFloat(w, 'f', -1, 64)
		payload[key+".fail_closed"] = strconv.FormatBool(s.IsFailClosed)
	}

	var score int
	if totalWeight > 0 {
		score = int(math.Round(weighted / totalWeight))
	} else {
		// All weights zero: fall back to the plain mean.
		var sum int
		for _, s := range sources {
			sum += s.Result.RiskScore()
		}
		score = int(math.Round(float64(sum) / float64(len(sources))))
	}
	score = min(max(score, 0), 100)

	hint := model.DecisionHint{
		Action: valueobject.DecisionActionFromScore(score, policy.MFAThreshold, policy.BlockThreshold),
	}
	switch {
	case failClosed:
		hint = model.DecisionHint{Action: valueobject.ActionBlock, BlockReason: BlockReasonCritical}
	case hint.Action.IsBlock():
		hint.BlockReason = BlockReasonThreshold
	}
	payload["fail_closed"] = strconv.FormatBool(failClosed)

	return model.NewRiskAssessmentResult(score, valueobject.RiskLevelFromScore(score), triggered, hint, payload)
}

// remoteResult converts a provider answer into an assessment result.
func remoteResult(ra model.RemoteAssessment, policy model.Policy) (model.RiskAssessmentResult, error) {
	if math.IsNaN(ra.RiskScore) || math.IsInf(ra.RiskScore, 0) {
		return model.CriticalAssessment(BlockReasonCritical, "remote_invalid_score"), nil
	}
	policy = policy.WithDefaults()
	score := int(math.Round(min(max(ra.RiskScore, 0), 100)))

	level, err := valueobject.RiskLevelFromString(ra.RiskLevel)
	if err != nil {
		level = valueobject.RiskLevelFromScore(score)
	}
	hint := model.DecisionHint{
		Action: valueobject.DecisionActionFromScore(score, policy.MFAThreshold, policy.BlockThreshold),
	}
	if hint.Action.IsBlock() {
		hint.BlockReason = BlockReasonThreshold
	}

	rules := make([]string, 0, len(ra.Reasons))
	for _, r := range ra.Reasons {
		rules = append(rules, "remote:"+r)
	}
	payload := map[string]string{
		"provider":   ra.Provider,
		"confidence": strconv.FormatFloat(ra.Confidence, 'f', -1, 64),
	}
	return model.NewRiskAssessmentResult(score, level, rules, hint, payload)
}
