package plugin

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/valueobject"
)

// DefaultMaxPlugins caps the number of plugins a Set may hold.
const DefaultMaxPlugins = 50

// IsolationConfig controls how plugin failures are handled.
type IsolationConfig struct {
	Logger      *slog.Logger
	FailureMode valueobject.FailureMode
	Environment string
	MaxPlugins  int
}

type extendFunc func(StageContext, model.RiskContext) (StageContext, error)

type isolated struct {
	scoring    extendFunc
	rule       extendFunc
	assessment extendFunc
	id         string
	priority   int
}

// Set is an ordered collection of isolated plugins. A nil *Set is valid and
// returns every stage context unchanged.
type Set struct {
	logger      *slog.Logger
	failureMode valueobject.FailureMode
	environment string
	plugins     []isolated
}

// Isolate validates plugins, orders them by priority and wraps every
// extension function so that errors and panics are contained.
func Isolate(plugins []Plugin, cfg IsolationConfig) (*Set, error) {
	limit := cfg.MaxPlugins
	if limit <= 0 {
		limit = DefaultMaxPlugins
	}
	if len(plugins) > limit {
		return nil, fmt.Errorf("%w: %d registered, limit %d", ErrTooManyPlugins, len(plugins), limit)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Set{
		logger:      logger,
		failureMode: cfg.FailureMode.OrDefault(),
		environment: cfg.Environment,
		plugins:     make([]isolated, 0, len(plugins)),
	}

	for _, p := range plugins {
		if p == nil {
			continue
		}
		ip := isolated{id: p.ID(), priority: priorityOf(p)}
		if e, ok := p.(ScoringExtender); ok {
			ip.scoring = e.ExtendScoringContext
		}
		if e, ok := p.(RuleExtender); ok {
			ip.rule = e.ExtendRuleContext
		}
		if e, ok := p.(AssessmentExtender); ok {
			ip.assessment = e.ExtendAssessmentContext
		}
		s.plugins = append(s.plugins, ip)
	}

	slices.SortStableFunc(s.plugins, func(a, b isolated) int {
		return cmp.Compare(a.priority, b.priority)
	})

	return s, nil
}

// Len returns the number of plugins in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.plugins)
}

// IDs returns plugin ids in execution order.
func (s *Set) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, len(s.plugins))
	for i, p := range s.plugins {
		ids[i] = p.id
	}
	return ids
}

// ExtendScoring runs the scoring stage of every plugin in order.
func (s *Set) ExtendScoring(sc StageContext, rc model.RiskContext) (StageContext, error) {
	return s.run(StageScoring, sc, rc, func(p isolated) extendFunc { return p.scoring })
}

// ExtendRule runs the rule stage of every plugin in order.
func (s *Set) ExtendRule(sc StageContext, rc model.RiskContext) (StageContext, error) {
	return s.run(StageRule, sc, rc, func(p isolated) extendFunc { return p.rule })
}

// ExtendAssessment runs the assessment stage of every plugin in order.
func (s *Set) ExtendAssessment(sc StageContext, rc model.RiskContext) (StageContext, error) {
	return s.run(StageAssessment, sc, rc, func(p isolated) extendFunc { return p.assessment })
}

func (s *Set) run(stage string, sc StageContext, rc model.RiskContext, pick func(isolated) extendFunc) (StageContext, error) {
	if s == nil {
		return sc, nil
	}
	current := sc
	for _, p := range s.plugins {
		fn := pick(p)
		if fn == nil {
			continue
		}
		next, err := call(fn, current, rc.Clone())
		if err == nil {
			current = next
			continue
		}
		if s.failureMode == valueobject.FailClosed {
			return StageContext{}, &PluginError{PluginID: p.id, Stage: stage, Err: err}
		}
		// Fail-open: keep the context as it was before this plugin ran.
		if s.environment != "production" {
			s.logger.Warn("plugin failed, continuing without it",
				slog.String("plugin_id", p.id),
				slog.String("stage", stage),
				slog.String("error", err.Error()),
			)
		}
	}
	return current, nil
}

func call(fn extendFunc, sc StageContext, rc model.RiskContext) (out StageContext, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(sc, rc)
}
