package service

import (
	"errors"
	"math"

	"github.com/bibbank/loginrisk/internal/domain/model"
)

// ErrInvalidWeights is returned when a weight set fails validation.
var ErrInvalidWeights = errors.New("invalid risk weights")

const (
	minWeightSum = 0.9
	maxWeightSum = 1.1
	sumEpsilon   = 1e-9
)

var defaultRiskWeights = model.RiskWeights{
	Device:   0.25,
	Geo:      0.25,
	Network:  0.30,
	Velocity: 0.20,
}

// DefaultRiskWeights returns a copy of the default weight set.
func DefaultRiskWeights() model.RiskWeights {
	return defaultRiskWeights
}

// ValidateRiskWeights reports whether every component is in [0,1] and the
// components sum to a value in [0.9,1.1].
func ValidateRiskWeights(w model.RiskWeights) bool {
	for _, v := range []float64{w.Device, w.Geo, w.Network, w.Velocity} {
		if !validWeight(v) {
			return false
		}
	}
	return validWeightSum(w.Sum())
}

func validWeight(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func validWeightSum(sum float64) bool {
	return sum >= minWeightSum-sumEpsilon && sum <= maxWeightSum+sumEpsilon
}

// clampScore rounds v and clamps it to [0,100]. NaN becomes 0.
func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(clamp(v)))
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
