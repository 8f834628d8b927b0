package service_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/service"
)

func constant(v float64) func(model.RiskContext) float64 {
	return func(model.RiskContext) float64 { return v }
}

func TestFactorScorer_Examples(t *testing.T) {
	scorer := service.NewFactorScorer()

	got, err := scorer.ScoreWithFactors(model.RiskContext{}, []service.RiskFactor{
		{Name: "a", Weight: 0.6, Compute: constant(50)},
		{Name: "b", Weight: 0.4, Compute: constant(30)},
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	got, err = scorer.ScoreWithFactors(model.RiskContext{}, []service.RiskFactor{
		{Name: "a", Weight: 0.5, Compute: constant(33.333)},
		{Name: "b", Weight: 0.5, Compute: constant(66.666)},
	})
	require.NoError(t, err)
	assert.Equal(t, 50, got)
}

func TestFactorScorer_Normalizes(t *testing.T) {
	scorer := service.NewFactorScorer()
	factors := []service.RiskFactor{
		{Name: "a", Weight: 0.55, Compute: constant(100)},
		{Name: "b", Weight: 0.55, Compute: constant(0)},
	}

	got, err := scorer.ScoreWithFactors(model.RiskContext{}, factors)
	require.NoError(t, err)
	assert.Equal(t, 50, got)

	// second call hits the cached weights
	got, err = scorer.ScoreWithFactors(model.RiskContext{}, factors)
	require.NoError(t, err)
	assert.Equal(t, 50, got)
}

func TestFactorScorer_ClampsComputedValues(t *testing.T) {
	scorer := service.NewFactorScorer()

	got, err := scorer.ScoreWithFactors(model.RiskContext{}, []service.RiskFactor{
		{Name: "over", Weight: 0.25, Compute: constant(500)},
		{Name: "neg", Weight: 0.25, Compute: constant(-20)},
		{Name: "nan", Weight: 0.25, Compute: constant(math.NaN())},
		{Name: "nil", Weight: 0.25},
	})
	require.NoError(t, err)
	assert.Equal(t, 25, got)
}

func TestFactorScorer_Rejects(t *testing.T) {
	scorer := service.NewFactorScorer()

	tests := []struct {
		name    string
		factors []service.RiskFactor
	}{
		{"empty", nil},
		{"duplicate names", []service.RiskFactor{{Name: "a", Weight: 0.5}, {Name: "a", Weight: 0.5}}},
		{"weight above one", []service.RiskFactor{{Name: "a", Weight: 1.2}}},
		{"negative weight", []service.RiskFactor{{Name: "a", Weight: -0.1}, {Name: "b", Weight: 1}}},
		{"sum too low", []service.RiskFactor{{Name: "a", Weight: 0.4}, {Name: "b", Weight: 0.4}}},
		{"sum too high", []service.RiskFactor{{Name: "a", Weight: 0.7}, {Name: "b", Weight: 0.7}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scorer.ScoreWithFactors(model.RiskContext{}, tt.factors)
			require.Error(t, err)
			assert.ErrorIs(t, err, service.ErrInvalidFactors)
		})
	}
}

func TestFactorScorer_CacheKeyedOnExactFactorSet(t *testing.T) {
	t.Run("crafted name does not reuse another set's weights", func(t *testing.T) {
		scorer := service.NewFactorScorer()
		_, err := scorer.ScoreWithFactors(model.RiskContext{}, []service.RiskFactor{
			{Name: "a", Weight: 0.3, Compute: constant(100)},
			{Name: "b", Weight: 0.3, Compute: constant(100)},
			{Name: "c", Weight: 0.4, Compute: constant(100)},
		})
		require.NoError(t, err)

		_, err = scorer.ScoreWithFactors(model.RiskContext{}, []service.RiskFactor{
			{Name: "a=0.3;b", Weight: 0.3, Compute: constant(100)},
			{Name: "c", Weight: 0.4, Compute: constant(100)},
		})
		assert.ErrorIs(t, err, service.ErrInvalidFactors)
	})

	t.Run("longer set after a shorter cached one", func(t *testing.T) {
		scorer := service.NewFactorScorer()
		_, err := scorer.ScoreWithFactors(model.RiskContext{}, []service.RiskFactor{
			{Name: "a=0.3;b", Weight: 0.6, Compute: constant(100)},
			{Name: "c", Weight: 0.4, Compute: constant(100)},
		})
		require.NoError(t, err)

		require.NotPanics(t, func() {
			_, err = scorer.ScoreWithFactors(model.RiskContext{}, []service.RiskFactor{
				{Name: "a", Weight: 0.3, Compute: constant(100)},
				{Name: "b", Weight: 0.6, Compute: constant(100)},
				{Name: "c", Weight: 0.4, Compute: constant(100)},
			})
		})
		assert.ErrorIs(t, err, service.ErrInvalidFactors)

		got, err := scorer.ScoreWithFactors(model.RiskContext{}, []service.RiskFactor{
			{Name: "a", Weight: 0.2, Compute: constant(100)},
			{Name: "b", Weight: 0.4, Compute: constant(0)},
			{Name: "c", Weight: 0.4, Compute: constant(50)},
		})
		require.NoError(t, err)
		assert.Equal(t, 40, got)
	})
}
