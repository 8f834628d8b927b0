package safety

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/port"
)

var hundred = decimal.NewFromInt(100)

// Tracker counts shadow comparisons in evaluation windows and turns them into
// dashboard metrics. A window closes at the first Snapshot taken after it has
// elapsed: that Snapshot still reports the closing window, so every recorded
// comparison is evaluated once before the counts restart.
type Tracker struct {
	mu     sync.Mutex
	now    func() time.Time
	start  time.Time
	counts map[string]int
	window time.Duration
	total  int
}

var _ port.ComparisonRecorder = (*Tracker)(nil)

// NewTracker creates a Tracker. A non-positive window uses the default
// evaluation window and a nil clock uses time.Now.
func NewTracker(window time.Duration, now func() time.Time) *Tracker {
	if window <= 0 {
		window = model.DefaultEvaluationWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now:    now,
		start:  now(),
		counts: make(map[string]int),
		window: window,
	}
}

// Record counts one comparison.
func (t *Tracker) Record(_ context.Context, c model.ShadowComparison) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total++
	t.counts[c.Classification]++
	return nil
}

// Snapshot returns metrics for the current window, then starts a new window
// if this one has elapsed.
func (t *Tracker) Snapshot() model.DisagreementMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := model.DisagreementMetrics{
		TotalComparisons: t.total,
		Classification:   t.dominantLocked(),
	}
	if t.total > 0 {
		pct := decimal.NewFromInt(int64(t.counts[model.ComparisonV2Weaker])).
			Mul(hundred).
			Div(decimal.NewFromInt(int64(t.total))).
			Round(2)
		m.V2WeakerPercentage = pct.InexactFloat64()
	}
	if now := t.now(); now.Sub(t.start) >= t.window {
		t.resetLocked(now)
	}
	return m
}

// SetWindow changes the evaluation window. The current window keeps its start.
func (t *Tracker) SetWindow(window time.Duration) {
	if window <= 0 {
		window = model.DefaultEvaluationWindow
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.window = window
}

// Window returns the evaluation window.
func (t *Tracker) Window() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window
}

// Reset drops all counts and starts a new window.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked(t.now())
}

func (t *Tracker) resetLocked(now time.Time) {
	t.start = now
	t.total = 0
	clear(t.counts)
}

// dominantLocked returns the most frequent disagreement class, or match when
// there were no disagreements.
func (t *Tracker) dominantLocked() string {
	best, bestN := model.ComparisonMatch, 0
	for _, class := range []string{model.ComparisonV2Weaker, model.ComparisonV2Stronger, model.ComparisonScoreDrift} {
		if n := t.counts[class]; n > bestN {
			best, bestN = class, n
		}
	}
	return best
}
