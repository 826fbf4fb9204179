package event

import (
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Handler is a function that handles a stream event.
type Handler func(Event)

// subscription is a registered handler.
type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous pub-sub bus for stream events. Publishers block until
// every handler has run, which keeps event ordering identical to emission
// order. Safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Type][]subscription
	nextID atomic.Uint64
}

// wildcard is the internal key for SubscribeAll handlers.
const wildcard Type = "*"

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[Type][]subscription),
	}
}

// Subscribe registers a handler for a specific event type and returns a
// subscription ID for Unsubscribe.
func (b *Bus) Subscribe(t Type, handler Handler) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID.Add(1)
	b.subs[t] = append(b.subs[t], subscription{id: id, handler: handler})
	return id
}

// SubscribeAll registers a handler that receives every published event.
func (b *Bus) SubscribeAll(handler Handler) uint64 {
	return b.Subscribe(wildcard, handler)
}

// Unsubscribe removes a subscription by ID. Returns true if it was found.
func (b *Bus) Unsubscribe(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, subs := range b.subs {
		for i, sub := range subs {
			if sub.id == id {
				b.subs[t] = append(subs[:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish dispatches an event to all matching handlers: type-specific
// handlers first, then wildcard handlers, each group in registration order.
// A panicking handler is recovered and logged so it cannot block delivery
// to the rest.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	specific := make([]subscription, len(b.subs[ev.Type]))
	copy(specific, b.subs[ev.Type])
	wild := make([]subscription, len(b.subs[wildcard]))
	copy(wild, b.subs[wildcard])
	b.mu.RUnlock()

	for _, sub := range specific {
		b.safeCall(sub.handler, ev)
	}
	for _, sub := range wild {
		b.safeCall(sub.handler, ev)
	}
}

// safeCall invokes a handler and recovers from any panic, logging the stack.
func (b *Bus) safeCall(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: event handler panicked for event %s: %v\n%s",
				ev.Type, r, debug.Stack())
		}
	}()
	handler(ev)
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[Type][]subscription)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subs {
		count += len(subs)
	}
	return count
}
