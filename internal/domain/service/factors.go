package service

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/bibbank/loginrisk/internal/domain/model"
)

// ErrInvalidFactors is returned when a factor set fails validation.
var ErrInvalidFactors = errors.New("invalid risk factors")

// RiskFactor is one named, weighted contributor to a custom score.
type RiskFactor struct {
	Compute func(rc model.RiskContext) float64
	Name    string
	Weight  float64
}

// FactorScorer scores a context against caller-defined factors. Normalized
// weights are cached per distinct factor set.
type FactorScorer struct {
	normalized sync.Map // signature -> []float64
}

// NewFactorScorer creates a FactorScorer with an empty cache.
func NewFactorScorer() *FactorScorer {
	return &FactorScorer{}
}

// ScoreWithFactors validates factors and returns round(Σ clamp(compute)×weight)
// clamped to [0,100]. Weights are normalized when they do not sum to 1.
func (s *FactorScorer) ScoreWithFactors(rc model.RiskContext, factors []RiskFactor) (int, error) {
	weights, err := s.weightsFor(factors)
	if err != nil {
		return 0, err
	}

	var total float64
	for i, f := range factors {
		var v float64
		if f.Compute != nil {
			v = f.Compute(rc)
		}
		if math.IsInf(v, 0) {
			v = 0
		}
		total += clamp(v) * weights[i]
	}
	return clampScore(total), nil
}

func (s *FactorScorer) weightsFor(factors []RiskFactor) ([]float64, error) {
	sig := signature(factors)
	if cached, ok := s.normalized.Load(sig); ok {
		if w := cached.([]float64); len(w) == len(factors) {
			return w, nil
		}
	}

	if err := validateFactors(factors); err != nil {
		return nil, err
	}

	var sum float64
	for _, f := range factors {
		sum += f.Weight
	}
	weights := make([]float64, len(factors))
	for i, f := range factors {
		if math.Abs(sum-1) > sumEpsilon {
			weights[i] = f.Weight / sum
		} else {
			weights[i] = f.Weight
		}
	}

	actual, _ := s.normalized.LoadOrStore(sig, weights)
	return actual.([]float64), nil
}

func validateFactors(factors []RiskFactor) error {
	if len(factors) == 0 {
		return fmt.Errorf("%w: no factors", ErrInvalidFactors)
	}
	seen := make(map[string]struct{}, len(factors))
	var sum float64
	for _, f := range factors {
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: duplicate factor %q", ErrInvalidFactors, f.Name)
		}
		seen[f.Name] = struct{}{}
		if !validWeight(f.Weight) {
			return fmt.Errorf("%w: factor %q weight %v outside [0,1]", ErrInvalidFactors, f.Name, f.Weight)
		}
		sum += f.Weight
	}
	if !validWeightSum(sum) {
		return fmt.Errorf("%w: weight sum %v outside [0.9,1.1]", ErrInvalidFactors, sum)
	}
	return nil
}

// signature identifies a factor set by its names and weights in order. Names
// are length-prefixed so no name can forge another set's key.
func signature(factors []RiskFactor) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(factors)))
	for _, f := range factors {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(len(f.Name)))
		b.WriteByte(':')
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(strconv.FormatUint(math.Float64bits(f.Weight), 16))
	}
	return b.String()
}
