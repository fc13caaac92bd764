// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package event

import (
	"context"
	"sync"

	"github.com/samber/oops"
)

// Handler reacts to a published event.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// On subscribes fn to events of the concrete type T only.
func On[T Event](b *Bus, fn func(ctx context.Context, ev T) error) (unsubscribe func()) {
	return b.Subscribe(HandlerFunc(func(ctx context.Context, ev Event) error {
		typed, ok := ev.(T)
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	}))
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus delivers events synchronously to subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers ev to every subscriber. The first handler error stops
// delivery and is returned. Handlers run outside the bus lock and may
// subscribe or unsubscribe.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.handler.Handle(ctx, ev); err != nil {
			return oops.Code("EVENT_HANDLER_FAILED").
				With("event_type", string(ev.EventType())).
				With("event_id", ev.EventID().String()).
				Wrap(err)
		}
	}
	return nil
}
