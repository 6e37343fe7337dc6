package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Store is the durable side of the event stream. The worker drains the
// publisher's outbox into one of these.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher hands domain events to a bounded outbox channel. Emission is
// fire-and-forget: core mutations never block on, or fail because of, event
// delivery. Each overflow drop is logged with the running drop count.
type Publisher struct {
	outbox  chan Event
	logger  *slog.Logger
	dropped atomic.Int64
}

const defaultOutboxDepth = 1024

// NewPublisher builds a publisher with the default outbox depth.
func NewPublisher(logger *slog.Logger) *Publisher {
	return &Publisher{
		outbox: make(chan Event, defaultOutboxDepth),
		logger: logger,
	}
}

// Emit enqueues an event, stamping the time if unset. Never blocks.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	select {
	case p.outbox <- event:
	default:
		p.logger.WarnContext(ctx, "event outbox full, dropping event",
			"kind", event.Kind,
			"dropped_total", p.dropped.Add(1),
		)
	}
}

// Dropped returns how many events have been dropped on outbox overflow.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Outbox exposes the drain side for the worker.
func (p *Publisher) Outbox() <-chan Event {
	return p.outbox
}

// Worker consumes events from the publisher outbox and persists them. It
// keeps background processing testable without wiring queue implementations.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run drains the inbox until the context is canceled. Store failures are
// logged, not propagated: the event stream is best-effort by design.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "event append failed",
					"kind", event.Kind,
					"error", err,
				)
			}
		}
	}
}

// MemoryStore keeps events in memory for tests and development.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns a copy of all stored events in append order.
func (s *MemoryStore) List() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events...)
}
