package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Default step timeouts.
const (
	DefaultFingerprintTimeout    = 5 * time.Second
	DefaultRiskAssessmentTimeout = 10 * time.Second
	DefaultRemoteProviderTimeout = 3 * time.Second
)

// RunStep runs fn under a step-scoped timeout derived from ctx and tags any
// failure with the step name. It returns as soon as the step context ends,
// even when fn ignores it.
func RunStep[T any](ctx context.Context, step string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	v, err := await(ctx, timeout, fn)
	if err != nil {
		var se *StepError
		if errors.As(err, &se) {
			return v, err
		}
		return v, &StepError{Step: step, Err: err}
	}
	return v, nil
}

// await races fn against ctx and an optional timeout. Panics in fn are
// returned as errors.
func await[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		err error
		v   T
	}
	done := make(chan outcome, 1)

	go func() {
		var o outcome
		defer func() {
			if r := recover(); r != nil {
				o = outcome{err: fmt.Errorf("panic: %v", r)}
			}
			done <- o
		}()
		o.v, o.err = fn(runCtx)
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return zero, o.err
		}
		return o.v, nil
	case <-runCtx.Done():
		return zero, runCtx.Err()
	}
}
