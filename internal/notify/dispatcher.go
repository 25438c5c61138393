package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/groupledger/internal/metrics"
)

// Dispatcher queues events and delivers them to every notifier from a
// background goroutine. Publish never blocks the caller: when the queue is
// full the event is dropped and logged.
type Dispatcher struct {
	notifiers []Notifier
	metrics   *metrics.Metrics
	timeout   time.Duration

	mu     sync.RWMutex
	closed bool
	events chan Event
	done   chan struct{}
}

// NewDispatcher starts a dispatcher with a queue of size buffer.
func NewDispatcher(m *metrics.Metrics, buffer int, notifiers ...Notifier) *Dispatcher {
	if m == nil {
		m = metrics.Noop()
	}
	d := &Dispatcher{
		notifiers: notifiers,
		metrics:   m,
		timeout:   10 * time.Second,
		events:    make(chan Event, buffer),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues event for delivery.
func (d *Dispatcher) Publish(event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		slog.Warn("Event published after dispatcher closed", "type", event.Type, "group_id", event.GroupID)
		return
	}

	select {
	case d.events <- event:
	default:
		slog.Warn("Event queue full, dropping event", "type", event.Type, "group_id", event.GroupID)
		d.metrics.NotifyFailures.WithLabelValues("queue").Inc()
	}
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.events {
		for _, n := range d.notifiers {
			d.deliver(n, event)
		}
	}
}

func (d *Dispatcher) deliver(n Notifier, event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := n.Notify(ctx, event); err != nil {
		slog.Error("Notify failed", "notifier", n.Name(), "type", event.Type, "group_id", event.GroupID, "error", err)
		d.metrics.NotifyFailures.WithLabelValues(n.Name()).Inc()
		return
	}
	slog.Debug("Event delivered", "notifier", n.Name(), "type", event.Type, "subject_id", event.SubjectID)
}
