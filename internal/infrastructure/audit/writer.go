package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/port"
)

// WriterConfig tunes the persistent audit writer.
type WriterConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	Logger        *slog.Logger
}

func (c WriterConfig) withDefaults() WriterConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 4096
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Writer persists audit entries through an AuditRepository in batches.
// Log never blocks; entries beyond the buffer are dropped and counted.
type Writer struct {
	repo      port.AuditRepository
	cfg       WriterConfig
	ch        chan model.AuditEntry
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

var _ port.AuditLogger = (*Writer)(nil)

// NewWriter starts a Writer.
func NewWriter(repo port.AuditRepository, cfg WriterConfig) *Writer {
	cfg = cfg.withDefaults()
	w := &Writer{
		repo: repo,
		cfg:  cfg,
		ch:   make(chan model.AuditEntry, cfg.BufferSize),
		done: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Log implements port.AuditLogger.
func (w *Writer) Log(e model.AuditEntry) {
	if w.closed.Load() {
		return
	}
	select {
	case w.ch <- e:
	case <-w.done:
	default:
		w.dropped.Add(1)
	}
}

func (w *Writer) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]model.AuditEntry, 0, w.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.write(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e := <-w.ch:
			batch = append(batch, e)
			if len(batch) >= w.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.done:
			for {
				select {
				case e := <-w.ch:
					batch = append(batch, e)
					if len(batch) >= w.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (w *Writer) write(batch []model.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.repo.Append(ctx, batch...); err != nil {
		w.failed.Add(uint64(len(batch)))
		w.cfg.Logger.Error("failed to persist audit entries",
			slog.Int("count", len(batch)),
			slog.String("error", err.Error()),
		)
	}
}

// Close flushes buffered entries and stops the writer.
func (w *Writer) Close() {
	w.closeOnce.Do(func() {
		w.closed.Store(true)
		close(w.done)
		w.wg.Wait()
	})
}

// Dropped reports entries discarded because the buffer was full.
func (w *Writer) Dropped() uint64 { return w.dropped.Load() }

// Failed reports entries the repository rejected.
func (w *Writer) Failed() uint64 { return w.failed.Load() }
