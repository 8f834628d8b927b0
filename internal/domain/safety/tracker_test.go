package safety_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/safety"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func record(t *testing.T, tr *safety.Tracker, class string, n int) {
	t.Helper()
	for range n {
		require.NoError(t, tr.Record(context.Background(), model.ShadowComparison{Classification: class}))
	}
}

func TestTracker_Snapshot(t *testing.T) {
	clock := &fakeClock{now: t0}
	tr := safety.NewTracker(time.Minute, clock.Now)

	assert.Equal(t, model.DisagreementMetrics{Classification: model.ComparisonMatch}, tr.Snapshot())

	record(t, tr, model.ComparisonMatch, 140)
	record(t, tr, model.ComparisonV2Weaker, 9)
	record(t, tr, model.ComparisonV2Stronger, 1)

	m := tr.Snapshot()
	assert.Equal(t, 150, m.TotalComparisons)
	assert.Equal(t, 6.0, m.V2WeakerPercentage)
	assert.Equal(t, model.ComparisonV2Weaker, m.Classification)
}

func TestTracker_RoundsPercentage(t *testing.T) {
	tr := safety.NewTracker(time.Minute, (&fakeClock{now: t0}).Now)

	record(t, tr, model.ComparisonV2Weaker, 1)
	record(t, tr, model.ComparisonMatch, 2)

	assert.Equal(t, 33.33, tr.Snapshot().V2WeakerPercentage)
}

func TestTracker_ClosingWindowIsReportedBeforeRestart(t *testing.T) {
	clock := &fakeClock{now: t0}
	tr := safety.NewTracker(time.Minute, clock.Now)

	clock.now = t0.Add(50 * time.Second)
	assert.Zero(t, tr.Snapshot().TotalComparisons)

	clock.now = t0.Add(55 * time.Second)
	record(t, tr, model.ComparisonV2Weaker, 150)

	clock.now = t0.Add(time.Minute)
	m := tr.Snapshot()
	assert.Equal(t, 150, m.TotalComparisons)
	assert.Equal(t, 100.0, m.V2WeakerPercentage)

	// The window closed with that snapshot.
	assert.Zero(t, tr.Snapshot().TotalComparisons)
}

func TestTracker_SnapshotsSparserThanWindowSeeEverything(t *testing.T) {
	clock := &fakeClock{now: t0}
	tr := safety.NewTracker(10*time.Second, clock.Now)

	for tick := 1; tick <= 3; tick++ {
		record(t, tr, model.ComparisonV2Weaker, 5)
		record(t, tr, model.ComparisonMatch, 95)
		clock.now = t0.Add(time.Duration(tick) * 30 * time.Second)

		m := tr.Snapshot()
		assert.Equal(t, 100, m.TotalComparisons, "tick %d", tick)
		assert.Equal(t, 5.0, m.V2WeakerPercentage, "tick %d", tick)
	}
}

func TestTracker_WindowDecidesWhenCountsRestart(t *testing.T) {
	for _, tc := range []struct {
		name      string
		window    time.Duration
		wantTotal int
	}{
		{"short window restarts", 20 * time.Second, 10},
		{"long window accumulates", 2 * time.Minute, 20},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clock := &fakeClock{now: t0}
			tr := safety.NewTracker(time.Hour, clock.Now)
			tr.SetWindow(tc.window)
			assert.Equal(t, tc.window, tr.Window())

			record(t, tr, model.ComparisonMatch, 10)
			clock.now = t0.Add(30 * time.Second)
			tr.Snapshot()

			record(t, tr, model.ComparisonMatch, 10)
			clock.now = t0.Add(40 * time.Second)
			assert.Equal(t, tc.wantTotal, tr.Snapshot().TotalComparisons)
		})
	}
}
