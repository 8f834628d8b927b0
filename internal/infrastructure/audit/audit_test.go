package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/infrastructure/audit"
)

// --- Mock implementations ---

type mockAuditRepo struct {
	mu      sync.Mutex
	batches [][]model.AuditEntry
	err     error
}

func (m *mockAuditRepo) Append(_ context.Context, entries ...model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, append([]model.AuditEntry(nil), entries...))
	return nil
}

func (m *mockAuditRepo) ListRecent(context.Context, string, int) ([]model.AuditEntry, error) {
	return nil, nil
}

func (m *mockAuditRepo) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

type mockAuditLogger struct {
	entries []model.AuditEntry
}

func (m *mockAuditLogger) Log(e model.AuditEntry) { m.entries = append(m.entries, e) }

// --- Tests ---

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	l := audit.NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	l.Log(model.NewAuditEntry(model.AuditKindProviderError, "risk_assessment", errors.New("timeout"), map[string]string{"handling": "dropped"}))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "audit", rec["component"])
	assert.Equal(t, model.AuditKindProviderError, rec["kind"])
	assert.Equal(t, "timeout", rec["error"])
	assert.Equal(t, map[string]any{"handling": "dropped"}, rec["fields"])

	buf.Reset()
	l.Log(model.NewAuditEntry(model.AuditKindOverrideActive, "", nil, nil))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "INFO", rec["level"])
}

func TestFanout(t *testing.T) {
	a, b := &mockAuditLogger{}, &mockAuditLogger{}
	f := audit.Fanout{a, nil, b}

	f.Log(model.NewAuditEntry(model.AuditKindStepError, "fingerprint", nil, nil))

	assert.Len(t, a.entries, 1)
	assert.Len(t, b.entries, 1)
}

func TestWriter_FlushesOnBatchSizeAndClose(t *testing.T) {
	repo := &mockAuditRepo{}
	w := audit.NewWriter(repo, audit.WriterConfig{BatchSize: 2, FlushInterval: time.Hour})

	for i := 0; i < 5; i++ {
		w.Log(model.NewAuditEntry(model.AuditKindShadowDisagree, "risk_assessment", nil, nil))
	}
	w.Close()

	assert.Equal(t, 5, repo.total())
	for _, b := range repo.batches {
		assert.LessOrEqual(t, len(b), 2)
	}
	assert.Zero(t, w.Dropped())
}

func TestWriter_FlushesOnInterval(t *testing.T) {
	repo := &mockAuditRepo{}
	w := audit.NewWriter(repo, audit.WriterConfig{BatchSize: 100, FlushInterval: 10 * time.Millisecond})
	defer w.Close()

	w.Log(model.NewAuditEntry(model.AuditKindAssessment, "", nil, nil))

	assert.Eventually(t, func() bool { return repo.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWriter_CountsFailures(t *testing.T) {
	repo := &mockAuditRepo{err: errors.New("db down")}
	w := audit.NewWriter(repo, audit.WriterConfig{
		BatchSize:     10,
		FlushInterval: time.Hour,
		Logger:        slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	})

	w.Log(model.NewAuditEntry(model.AuditKindStepError, "fingerprint", nil, nil))
	w.Log(model.NewAuditEntry(model.AuditKindStepError, "fingerprint", nil, nil))
	w.Close()

	assert.Equal(t, uint64(2), w.Failed())
	w.Log(model.NewAuditEntry(model.AuditKindStepError, "fingerprint", nil, nil))
	assert.Zero(t, w.Dropped(), "entries after close are ignored, not dropped")
}
