package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/pipeline"
)

func noopBuilder(context.Context, pipeline.Run) (model.RiskAssessmentResult, error) {
	return model.RiskAssessmentResult{}, nil
}

func TestRegistry_Select(t *testing.T) {
	r := pipeline.NewDefaultRegistry()

	v, b, fellBack, err := r.Select(1)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.NotNil(t, b)
	assert.False(t, fellBack)

	v, _, fellBack, err = r.Select(42)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.True(t, fellBack)
}

func TestRegistry_LatestIsHighest(t *testing.T) {
	r := pipeline.NewRegistry()
	require.NoError(t, r.Register(3, noopBuilder))
	require.NoError(t, r.Register(1, noopBuilder))

	v, _, err := r.Latest()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, r.Versions())
}

func TestRegistry_Empty(t *testing.T) {
	r := pipeline.NewRegistry()

	_, _, _, err := r.Select(1)
	assert.ErrorIs(t, err, pipeline.ErrNoFallbackVersion)
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := pipeline.NewRegistry()

	assert.ErrorIs(t, r.Register(0, noopBuilder), pipeline.ErrInvalidVersion)
	assert.ErrorIs(t, r.Register(1, nil), pipeline.ErrInvalidVersion)
}
