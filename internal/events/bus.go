package events

import (
	"fmt"
	"sync"
)

// DefaultMaxListeners bounds listener registration on a Bus unless overridden.
const DefaultMaxListeners = 32

// Listener receives published events. Implementations must be comparable
// (pointer receivers are the norm) so registration and removal stay
// idempotent.
type Listener interface {
	HandleEvent(Event)
}

// FuncListener adapts a plain function to the Listener interface. Allocate one
// per subscription; the pointer is the subscription's identity.
type FuncListener struct {
	Fn func(Event)
}

func (f *FuncListener) HandleEvent(ev Event) {
	if f.Fn != nil {
		f.Fn(ev)
	}
}

// Bus is a synchronous publish/subscribe channel with a bounded listener
// count. The zero value is not usable; construct with NewBus.
type Bus struct {
	mu           sync.Mutex
	listeners    map[Listener]struct{}
	order        []Listener
	maxListeners int
}

// BusOption customizes Bus construction.
type BusOption func(*Bus)

// WithMaxListeners overrides the listener ceiling.
func WithMaxListeners(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.maxListeners = n
		}
	}
}

// NewBus constructs an empty event bus.
func NewBus(opts ...BusOption) *Bus {
	bus := &Bus{
		listeners:    make(map[Listener]struct{}),
		maxListeners: DefaultMaxListeners,
	}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// Subscribe registers a listener. Registering the same listener twice is a
// no-op. Exceeding the listener ceiling is an error so runaway subscription
// loops surface early instead of leaking.
func (b *Bus) Subscribe(l Listener) error {
	if l == nil {
		return fmt.Errorf("events: nil listener")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[l]; ok {
		return nil
	}
	if len(b.listeners) >= b.maxListeners {
		return fmt.Errorf("events: listener limit reached (%d)", b.maxListeners)
	}
	b.listeners[l] = struct{}{}
	b.order = append(b.order, l)
	return nil
}

// Unsubscribe removes a listener. Removing an unknown listener is a no-op.
func (b *Bus) Unsubscribe(l Listener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[l]; !ok {
		return
	}
	delete(b.listeners, l)
	for i, existing := range b.order {
		if existing == l {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Reset drops every listener. Call between runs so subscriptions cannot leak
// from one run into the next.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[Listener]struct{})
	b.order = nil
}

// ListenerCount reports the number of registered listeners.
func (b *Bus) ListenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Publish delivers the event to every listener in registration order. Dispatch
// is synchronous; listeners must not block.
func (b *Bus) Publish(ev Event) {
	if ev == nil {
		return
	}
	b.mu.Lock()
	snapshot := make([]Listener, len(b.order))
	copy(snapshot, b.order)
	b.mu.Unlock()

	for _, l := range snapshot {
		l.HandleEvent(ev)
	}
}
