// Package telemetry delivers fire-and-forget pipeline telemetry to metrics
// and streaming sinks without blocking the login path.
package telemetry

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bibbank/loginrisk/internal/domain/port"
)

// Sink receives telemetry events from the dispatcher goroutine.
type Sink interface {
	Send(ctx context.Context, name string, payload map[string]any, at time.Time) error
}

// DefaultBufferSize bounds the number of queued events.
const DefaultBufferSize = 1024

type record struct {
	at      time.Time
	payload map[string]any
	name    string
}

// Dispatcher implements port.TelemetryEmitter. Emit never blocks: when the
// buffer is full the event is dropped and counted.
type Dispatcher struct {
	sinks     []Sink
	logger    *slog.Logger
	now       func() time.Time
	ch        chan record
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

var _ port.TelemetryEmitter = (*Dispatcher)(nil)

// NewDispatcher starts a dispatcher delivering to sinks in order.
func NewDispatcher(bufferSize int, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		sinks:  sinks,
		logger: logger,
		now:    time.Now,
		ch:     make(chan record, bufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case r := <-d.ch:
			d.deliver(r)
		case <-d.done:
			for {
				select {
				case r := <-d.ch:
					d.deliver(r)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(r record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, s := range d.sinks {
		if err := s.Send(ctx, r.name, r.payload, r.at); err != nil {
			d.logger.Debug("telemetry sink failed",
				slog.String("event", r.name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Emit queues an event. The payload is copied.
func (d *Dispatcher) Emit(name string, payload map[string]any) {
	if d == nil || d.closed.Load() {
		return
	}

	r := record{name: name, payload: maps.Clone(payload), at: d.now().UTC()}
	select {
	case d.ch <- r:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
}

// Close stops accepting events and drains the queue.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
