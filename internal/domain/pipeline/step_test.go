package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loginrisk/internal/domain/pipeline"
)

func TestRunStep_Success(t *testing.T) {
	v, err := pipeline.RunStep(context.Background(), "work", time.Second, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestRunStep_TagsErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := pipeline.RunStep(context.Background(), pipeline.StepFingerprint, time.Second, func(context.Context) (int, error) {
		return 0, boom
	})

	var se *pipeline.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, pipeline.StepFingerprint, se.Step)
	assert.ErrorIs(t, err, boom)
}

func TestRunStep_TimeoutWhenWorkIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	_, err := pipeline.RunStep(context.Background(), pipeline.StepRiskAssessment, 20*time.Millisecond, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})

	assert.Less(t, time.Since(start), time.Second)
	var se *pipeline.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, pipeline.StepRiskAssessment, se.Step)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunStep_Cancellation(t *testing.T) {
	t.Run("already cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		_, err := pipeline.RunStep(ctx, "work", time.Second, func(context.Context) (int, error) {
			called = true
			return 0, nil
		})
		assert.False(t, called)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("cancelled while running", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		_, err := pipeline.RunStep(ctx, "work", time.Minute, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunStep_RecoversPanic(t *testing.T) {
	_, err := pipeline.RunStep(context.Background(), "work", time.Second, func(context.Context) (int, error) {
		panic("bad")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: bad")
}

func TestDeterministicFingerprint(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		want          string
	}{
		{"phone", 390, 844, "mobile"},
		{"mobile boundary", 768, 1024, "mobile"},
		{"tablet", 820, 1180, "tablet"},
		{"large screen", 1920, 1080, "tablet"},
		{"wide and short", 1280, 720, "desktop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := pipeline.DeterministicFingerprint{DeviceID: "d-1", UserAgent: "ua", ScreenWidth: tt.width, ScreenHeight: tt.height}
			info := fp.DeviceInfo()
			assert.Equal(t, tt.want, string(info.DeviceType))
			assert.Equal(t, "d-1", info.DeviceID)
			assert.Equal(t, "ua", info.UserAgent)
		})
	}
}

func TestReadOverrides(t *testing.T) {
	env := map[string]string{
		pipeline.EnvForceRiskV1:           "1",
		pipeline.EnvDisableRemoteProvider: "true",
	}
	o := pipeline.ReadOverrides(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.True(t, o.ForceRiskV1)
	assert.False(t, o.DisableRemoteProvider)
	assert.False(t, o.FailOpenMode)
	assert.Equal(t, []string{pipeline.EnvForceRiskV1}, o.Active())
	assert.True(t, o.Any())
}
