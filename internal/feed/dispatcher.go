package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrStopped is returned by Enqueue after the dispatcher stopped.
var ErrStopped = errors.New("dispatcher stopped")

// Handler consumes delivered events. Adapter implements it.
type Handler interface {
	OnCollectionChanged(ctx context.Context, ev Event) error
}

// Journal records every delivered event before it is handled.
// internal/store implements it over SQLite.
type Journal interface {
	AppendEvent(ctx context.Context, seq int64, collection, action string, payload []byte) error
}

// Dispatcher is the dedicated executor for reconciliation.
//
// Producers on any goroutine enqueue events; exactly one goroutine delivers
// them, either Run in its own goroutine or Drain on the caller's. Each
// delivered event is stamped by the logical clock and journaled first.
//
// Thread-safety: Enqueue is safe for concurrent use. Run and Drain must not
// overlap; the reconciler's serial guard panics if they do.
type Dispatcher struct {
	queue   *eventQueue
	clock   Sequencer
	journal Journal
	logger  *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithJournal journals delivered events.
func WithJournal(j Journal) DispatcherOption {
	return func(d *Dispatcher) { d.journal = j }
}

// Sequencer stamps delivered events. *Clock is the production sequencer.
type Sequencer interface {
	Next() int64
	Current() int64
}

// WithClock sets the logical clock, e.g. NewClockAt(lastSeq) to resume a
// journal.
func WithClock(c Sequencer) DispatcherOption {
	return func(d *Dispatcher) { d.clock = c }
}

// WithDispatchLogger sets the logger. Default: slog.Default().
func WithDispatchLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates an idle dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		queue:  newEventQueue(),
		clock:  NewClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Clock returns the dispatcher's logical clock.
func (d *Dispatcher) Clock() Sequencer {
	return d.clock
}

// Enqueue schedules ev for delivery.
func (d *Dispatcher) Enqueue(ev Event) error {
	if !d.queue.Enqueue(ev) {
		return ErrStopped
	}
	return nil
}

// Pending returns the number of queued events.
func (d *Dispatcher) Pending() int {
	return d.queue.Len()
}

// Stop closes the queue. Run returns once the queue is empty.
func (d *Dispatcher) Stop() {
	d.queue.Close()
}

// Run delivers events to h until ctx is cancelled or Stop is called and
// the queue is drained. Handler errors are logged and do not stop the
// loop: one failing event must not block the rest of the feed.
func (d *Dispatcher) Run(ctx context.Context, h Handler) error {
	d.logger.Info("dispatcher starting")
	for {
		if ev, ok := d.queue.TryDequeue(); ok {
			if err := d.deliver(ctx, h, &ev); err != nil {
				d.logEventError(ev, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping: context cancelled")
			d.queue.Close()
			return ctx.Err()
		case <-d.queue.Wait():
			if d.queue.Closed() && d.queue.Len() == 0 {
				d.logger.Info("dispatcher stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain delivers every queued event to h on the calling goroutine,
// including events enqueued while draining. Handler errors are joined.
func (d *Dispatcher) Drain(ctx context.Context, h Handler) error {
	var errs []error
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		ev, ok := d.queue.TryDequeue()
		if !ok {
			return errors.Join(errs...)
		}
		if err := d.deliver(ctx, h, &ev); err != nil {
			d.logEventError(ev, err)
			errs = append(errs, err)
		}
	}
}

// deliver stamps, journals and handles one event.
func (d *Dispatcher) deliver(ctx context.Context, h Handler, ev *Event) error {
	ev.Seq = d.clock.Next()
	if d.journal != nil {
		payload, err := EncodePayload(*ev)
		if err != nil {
			return fmt.Errorf("journal event %d: %w", ev.Seq, err)
		}
		if err := d.journal.AppendEvent(ctx, ev.Seq, string(ev.Collection), string(ev.Action), payload); err != nil {
			return fmt.Errorf("journal event %d: %w", ev.Seq, err)
		}
	}
	if err := h.OnCollectionChanged(ctx, *ev); err != nil {
		return fmt.Errorf("event %d (%s %s): %w", ev.Seq, ev.Collection, ev.Action, err)
	}
	return nil
}

func (d *Dispatcher) logEventError(ev Event, err error) {
	attrs := []any{
		"seq", ev.Seq,
		"collection", ev.Collection,
		"action", ev.Action,
		"error", err,
	}
	if ev.Old != nil {
		attrs = append(attrs, "old", ev.Old.Len())
	}
	if ev.New != nil {
		attrs = append(attrs, "new", ev.New.Len())
	}
	d.logger.Error("event failed", attrs...)
}
