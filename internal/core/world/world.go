// Package world is the top-level container for stores. It owns the type
// registry, the unique-id table, the event bus and a deferred destruction
// queue flushed by CleanupSystem each tick.
package world

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lowengine/lowgo/internal/core/event"
	"github.com/lowengine/lowgo/internal/core/rtti"
	"github.com/lowengine/lowgo/internal/core/store"
	"github.com/lowengine/lowgo/internal/core/uid"
)

// DefaultCapacity is used when no capacity provider is configured.
const DefaultCapacity = 64

// CapacityProvider answers the initial store capacity for a type.
type CapacityProvider interface {
	Capacity(module, typeName string) uint32
}

// CapacityFunc adapts a function to CapacityProvider.
type CapacityFunc func(module, typeName string) uint32

func (f CapacityFunc) Capacity(module, typeName string) uint32 { return f(module, typeName) }

// Module creates stores and registers their types. Modules are initialized
// in registration order and cleaned up in reverse.
type Module interface {
	Name() string
	Initialize(w *World) error
	Cleanup(w *World)
}

// Restorer is implemented by modules that need a fix-up pass once every
// snapshot has been deserialized, e.g. to resolve cross references.
type Restorer interface {
	AfterRestore(w *World) error
}

type World struct {
	log       *zap.Logger
	registry  *rtti.Registry
	uids      *uid.Table
	gen       *uid.Generator
	bus       *event.Bus
	observers *event.Observers
	capacity  CapacityProvider

	modules     []Module
	initialized int

	mu           sync.Mutex
	destroyQueue []store.Handle
}

func New(capacity CapacityProvider, log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	return &World{
		log:          log,
		registry:     rtti.NewRegistry(log.Named("rtti")),
		uids:         uid.NewTable(log.Named("uid")),
		gen:          uid.NewGenerator(),
		bus:          event.NewBus(),
		observers:    event.NewObservers(),
		capacity:     capacity,
		destroyQueue: make([]store.Handle, 0, 64),
	}
}

func (w *World) Log() *zap.Logger                        { return w.log }
func (w *World) Registry() *rtti.Registry                { return w.registry }
func (w *World) UniqueIDs() *uid.Table                   { return w.uids }
func (w *World) Bus() *event.Bus                         { return w.bus }
func (w *World) Observers() *event.Observers             { return w.observers }
func (w *World) NewUniqueID(h store.Handle) uid.UniqueID { return w.gen.Generate(h) }

// Capacity returns the initial capacity configured for a type.
func (w *World) Capacity(module, typeName string) uint32 {
	if w.capacity == nil {
		return DefaultCapacity
	}
	return w.capacity.Capacity(module, typeName)
}

// Register queues a module for Initialize.
func (w *World) Register(m Module) {
	w.modules = append(w.modules, m)
}

// Initialize runs every module not yet initialized, in registration order.
// It stops at the first error; modules initialized so far stay live and are
// torn down by Cleanup.
func (w *World) Initialize() error {
	for w.initialized < len(w.modules) {
		m := w.modules[w.initialized]
		if err := m.Initialize(w); err != nil {
			return fmt.Errorf("initialize module %s: %w", m.Name(), err)
		}
		w.initialized++
		w.log.Info("module initialized", zap.String("module", m.Name()))
	}
	return nil
}

// Cleanup tears modules down in reverse order, then forgets every type and
// unique id. The world can be initialized again afterwards.
func (w *World) Cleanup() {
	w.FlushDestroyQueue()
	for i := w.initialized - 1; i >= 0; i-- {
		m := w.modules[i]
		m.Cleanup(w)
		w.log.Info("module cleaned up", zap.String("module", m.Name()))
	}
	w.initialized = 0
	w.registry.Reset()
	w.uids.Reset()
}

// IsAlive dispatches through the registry.
func (w *World) IsAlive(h store.Handle) bool {
	return w.registry.IsAlive(h)
}

// Destroy destroys h immediately through its registered type.
func (w *World) Destroy(h store.Handle) error {
	return w.registry.Destroy(h)
}

// MarkForDestruction queues a handle for end-of-tick cleanup. Safe for
// concurrent use.
func (w *World) MarkForDestruction(h store.Handle) {
	w.mu.Lock()
	w.destroyQueue = append(w.destroyQueue, h)
	w.mu.Unlock()
}

// FlushDestroyQueue destroys all queued handles that are still alive and
// returns how many were destroyed. Called by CleanupSystem at the end of
// each tick.
func (w *World) FlushDestroyQueue() int {
	w.mu.Lock()
	queue := w.destroyQueue
	w.destroyQueue = make([]store.Handle, 0, cap(queue))
	w.mu.Unlock()

	n := 0
	for _, h := range queue {
		// Marked twice, or destroyed directly after being marked.
		if !w.registry.IsAlive(h) {
			continue
		}
		if err := w.registry.Destroy(h); err != nil {
			w.log.Warn("queued destroy failed", zap.Stringer("handle", h), zap.Error(err))
			continue
		}
		n++
	}
	return n
}

// Queued reports the number of handles waiting in the destroy queue.
func (w *World) Queued() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.destroyQueue)
}
