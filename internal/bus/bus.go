// internal/bus/bus.go
package bus

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"questforge/internal/event"
)

// Handler consumes a single event. A non-nil error is logged and counted but
// never propagated to the publisher or to sibling handlers.
type Handler func(ctx context.Context, ev event.Event) error

// DeadLetterFunc receives events published with no subscribers for their kind.
type DeadLetterFunc func(ev event.Event)

type subscriber struct {
	name string
	fn   Handler
}

type delivery struct {
	ev      event.Event
	targets []subscriber
}

// Bus is the in-process publish/subscribe dispatcher. Handlers for a kind run
// in subscription order; events emitted by handlers are queued and dispatched
// breadth-first, after every handler of the current event has run. The bus
// provides no mutual exclusion over domain state; engines serialize their own
// per-user writes.
type Bus struct {
	mu          sync.Mutex
	subscribers map[event.Kind][]subscriber
	queue       []delivery
	dispatching bool

	deadLetter DeadLetterFunc
	failures   atomic.Int64
	dropped    atomic.Int64
	published  atomic.Int64

	tracer trace.Tracer
}

// Option configures a Bus.
type Option func(*Bus)

// WithDeadLetter overrides the default dead-letter policy (a log line).
func WithDeadLetter(fn DeadLetterFunc) Option {
	return func(b *Bus) { b.deadLetter = fn }
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subscribers: make(map[event.Kind][]subscriber),
		tracer:      otel.Tracer("questforge/bus"),
	}
	b.deadLetter = func(ev event.Event) {
		log.Printf("bus: dead letter, no subscribers for %s", ev.EventKind())
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for the exact kind. Subscriptions are
// setup-time only: an event already enqueued is never delivered to a handler
// registered afterwards.
func (b *Bus) Subscribe(kind event.Kind, name string, fn Handler) {
	if fn == nil {
		panic(fmt.Sprintf("bus: nil handler for %s (%s)", kind, name))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[kind] = append(b.subscribers[kind], subscriber{name: name, fn: fn})
}

// Publish enqueues the event for every handler currently registered for its
// kind and drains the queue unless a drain is already in progress on another
// frame, in which case the event runs breadth-first after the current one.
// Publish never returns an error: handler failures are isolated.
func (b *Bus) Publish(ctx context.Context, ev event.Event) {
	b.published.Add(1)

	b.mu.Lock()
	targets := b.subscribers[ev.EventKind()]
	if len(targets) == 0 {
		b.mu.Unlock()
		b.dropped.Add(1)
		b.deadLetter(ev)
		return
	}
	// Snapshot the handler list at enqueue time.
	b.queue = append(b.queue, delivery{ev: ev, targets: append([]subscriber(nil), targets...)})
	if b.dispatching {
		b.mu.Unlock()
		return
	}
	b.dispatching = true
	b.mu.Unlock()

	b.drain(ctx)
}

func (b *Bus) drain(ctx context.Context) {
	ctx, span := b.tracer.Start(ctx, "bus.dispatch")
	defer span.End()

	dispatched := 0
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.dispatching = false
			b.mu.Unlock()
			break
		}
		d := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		dispatched++
		for _, sub := range d.targets {
			b.deliver(ctx, sub, d.ev)
		}
	}

	span.SetAttributes(attribute.Int("events.dispatched", dispatched))
}

// deliver runs one handler, isolating errors and panics so a failing consumer
// never blocks siblings or the publisher.
func (b *Bus) deliver(ctx context.Context, sub subscriber, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.failures.Add(1)
			log.Printf("bus: handler %s panicked on %s: %v", sub.name, ev.EventKind(), r)
		}
	}()

	if err := sub.fn(ctx, ev); err != nil {
		b.failures.Add(1)
		log.Printf("bus: handler %s failed on %s: %v", sub.name, ev.EventKind(), err)
	}
}

// Failures returns the number of isolated handler errors and panics.
func (b *Bus) Failures() int64 { return b.failures.Load() }

// DeadLetters returns the number of events published with no subscribers.
func (b *Bus) DeadLetters() int64 { return b.dropped.Load() }

// Published returns the total number of publish calls.
func (b *Bus) Published() int64 { return b.published.Load() }
