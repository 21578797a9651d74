// Package events implements session-change event publishing.
package events

import (
	"context"
	"log/slog"
	"sync"

	"walletd/internal/domain/service"
)

// Bus is the in-process fan-out for session changes. It is the subscription
// surface page-level consumers use instead of touching the registry or the
// store; subscribers receive every replacement plus the latest event on
// subscription so late joiners do not miss the current state.
type Bus struct {
	logger  *slog.Logger
	forward service.SessionEventPublisher // optional downstream, e.g. a webhook

	mu     sync.Mutex
	nextID int
	subs   map[int]func(*service.SessionEvent)
	latest *service.SessionEvent
}

// NewBus is the constructor for Bus. forward may be nil.
func NewBus(logger *slog.Logger, forward service.SessionEventPublisher) *Bus {
	return &Bus{
		logger:  logger,
		forward: forward,
		subs:    make(map[int]func(*service.SessionEvent)),
	}
}

// Subscribe registers a callback for session changes. The callback is invoked
// immediately with the latest event, if any. The returned function detaches it.
func (b *Bus) Subscribe(cb func(*service.SessionEvent)) service.Unsubscribe {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = cb
	latest := b.latest
	b.mu.Unlock()

	if latest != nil {
		cb(latest)
	}

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Latest returns the most recently published event, or nil.
func (b *Bus) Latest() *service.SessionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.latest
}

// PublishSessionChanged fans the event out to all subscribers and the
// optional downstream publisher. Downstream failures are logged, never
// propagated: event delivery must not disturb the session state machine.
func (b *Bus) PublishSessionChanged(ctx context.Context, event *service.SessionEvent) error {
	b.mu.Lock()
	b.latest = event
	cbs := make([]func(*service.SessionEvent), 0, len(b.subs))
	for _, cb := range b.subs {
		cbs = append(cbs, cb)
	}
	b.mu.Unlock()

	for _, cb := range cbs {
		cb(event)
	}

	if b.forward != nil {
		if err := b.forward.PublishSessionChanged(ctx, event); err != nil {
			b.logger.Warn("Failed to forward session event", "error", err)
		}
	}

	return nil
}

// Close releases the downstream publisher, if any.
func (b *Bus) Close() error {
	if b.forward != nil {
		return b.forward.Close()
	}

	return nil
}
