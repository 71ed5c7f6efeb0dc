package usage

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hodie-labs/ingest/pkg/lifecycle"
)

// emitTimeout bounds a single delivery so a stuck sink cannot stall the queue.
const emitTimeout = 5 * time.Second

// Dispatcher queues events and delivers them from a background worker.
type Dispatcher struct {
	queue   chan Event
	emitter Emitter
	logger  *slog.Logger
	dropped atomic.Int64
}

// NewDispatcher creates a dispatcher with a queue of the given size.
func NewDispatcher(emitter Emitter, buffer int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:   make(chan Event, max(buffer, 1)),
		emitter: emitter,
		logger:  logger.With("system", "usage"),
	}
}

// Start runs the delivery worker until the coordinator shuts down. Queued
// events are drained before the emitter is closed.
func (d *Dispatcher) Start(lc *lifecycle.Coordinator) {
	lc.Go(d.Run)
}

// Run delivers queued events until ctx is done, then drains the queue.
func (d *Dispatcher) Run(ctx context.Context) {
	defer func() {
		if err := d.emitter.Close(); err != nil {
			d.logger.Warn("usage emitter close failed", "error", err)
		}
	}()

	for {
		select {
		case e := <-d.queue:
			d.deliver(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-d.queue:
					d.deliver(e)
				default:
					return
				}
			}
		}
	}
}

// Publish queues e without blocking. A full queue drops the event.
func (d *Dispatcher) Publish(e Event) {
	select {
	case d.queue <- e:
	default:
		n := d.dropped.Add(1)
		d.logger.Warn("usage event dropped",
			"tenant_id", e.TenantID,
			"upload_id", e.UploadID,
			"dropped", n,
		)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

func (d *Dispatcher) deliver(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()

	if err := d.emitter.Emit(ctx, e); err != nil {
		d.logger.Warn("usage event delivery failed",
			"tenant_id", e.TenantID,
			"upload_id", e.UploadID,
			"error", err,
		)
	}
}
