// Package plugin defines the extension points third parties can hook into
// the local assessment and the isolation wrapper applied at registration.
package plugin

import "github.com/bibbank/loginrisk/internal/domain/model"

// DefaultPriority applies to plugins that do not implement Prioritized.
const DefaultPriority = 100

// Stage names, used for error tagging.
const (
	StageScoring    = "scoring"
	StageRule       = "rule"
	StageAssessment = "assessment"
)

// Plugin is the minimum every plugin implements. The extension stages are
// optional capability interfaces.
type Plugin interface {
	ID() string
}

// Prioritized lets a plugin choose where it runs. Lower runs earlier.
type Prioritized interface {
	Priority() int
}

// ScoringExtender contributes attributes before scoring.
type ScoringExtender interface {
	ExtendScoringContext(sc StageContext, rc model.RiskContext) (StageContext, error)
}

// RuleExtender contributes attributes to rule evaluation. Keys of the form
// "rule:<name>" are reported as triggered rules.
type RuleExtender interface {
	ExtendRuleContext(sc StageContext, rc model.RiskContext) (StageContext, error)
}

// AssessmentExtender contributes attributes to the final audit payload.
type AssessmentExtender interface {
	ExtendAssessmentContext(sc StageContext, rc model.RiskContext) (StageContext, error)
}

func priorityOf(p Plugin) int {
	if pr, ok := p.(Prioritized); ok {
		return pr.Priority()
	}
	return DefaultPriority
}
