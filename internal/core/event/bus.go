package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted during tick N are
// delivered during tick N+1, in emission order. Emit is safe from any
// goroutine; stores fire lifecycle events from inside their hooks.
type Bus struct {
	mu       sync.Mutex
	pending  []envelope // emitted this tick
	ready    []envelope // swapped in, awaiting DispatchAll
	handlers map[reflect.Type][]func(any)
}

type envelope struct {
	typ reflect.Type
	ev  any
}

func NewBus() *Bus {
	return &Bus{
		pending:  make([]envelope, 0, 64),
		handlers: make(map[reflect.Type][]func(any)),
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Emit queues an event for the next tick.
func Emit[T any](b *Bus, event T) {
	env := envelope{typ: typeOf[T](), ev: event}
	b.mu.Lock()
	b.pending = append(b.pending, env)
	b.mu.Unlock()
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := typeOf[T]()
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// SwapBuffers makes everything emitted so far ready for DispatchAll and
// starts a fresh pending buffer. Called once per tick.
func (b *Bus) SwapBuffers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready, b.pending = b.pending, b.ready[:0]
}

// Pending reports how many events were emitted since the last swap.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// DispatchAll delivers the ready events to their handlers and empties the
// ready buffer. Handlers run without the bus lock held, so they may Emit.
func (b *Bus) DispatchAll() {
	b.mu.Lock()
	ready := b.ready
	b.ready = nil
	calls := make([][]func(any), len(ready))
	for i, env := range ready {
		calls[i] = b.handlers[env.typ]
	}
	b.mu.Unlock()

	for i, env := range ready {
		for _, h := range calls[i] {
			h(env.ev)
		}
	}
}
