package event

import (
	"sort"
	"sync"

	"github.com/lowengine/lowgo/internal/core/name"
	"github.com/lowengine/lowgo/internal/core/store"
)

// Destroy is broadcast to a handle's observers right before its record is
// released.
var Destroy = name.Of("destroy")

// Observers delivers named notifications about a handle synchronously,
// unlike Bus which defers to the next tick.
type Observers struct {
	mu     sync.Mutex
	nextID uint64
	byKey  map[observerKey]map[uint64]func(store.Handle)
	keys   map[uint64]observerKey
}

type observerKey struct {
	handle     store.Handle
	observable name.Name
}

func NewObservers() *Observers {
	return &Observers{
		byKey: make(map[observerKey]map[uint64]func(store.Handle)),
		keys:  make(map[uint64]observerKey),
	}
}

// Observe registers fn for notifications of observable on h and returns an
// id for Unobserve.
func (o *Observers) Observe(h store.Handle, observable name.Name, fn func(store.Handle)) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	id := o.nextID
	k := observerKey{handle: h, observable: observable}
	if o.byKey[k] == nil {
		o.byKey[k] = make(map[uint64]func(store.Handle))
	}
	o.byKey[k][id] = fn
	o.keys[id] = k
	return id
}

func (o *Observers) Unobserve(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	k, ok := o.keys[id]
	if !ok {
		return
	}
	delete(o.keys, id)
	delete(o.byKey[k], id)
	if len(o.byKey[k]) == 0 {
		delete(o.byKey, k)
	}
}

// Notify calls every observer of observable on h in registration order.
// Callbacks run without the lock held.
func (o *Observers) Notify(h store.Handle, observable name.Name) {
	o.mu.Lock()
	subs := o.byKey[observerKey{handle: h, observable: observable}]
	ids := make([]uint64, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(store.Handle), len(ids))
	for i, id := range ids {
		fns[i] = subs[id]
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(h)
	}
}

// Forget drops every observer registered on h. Called once h is dead.
func (o *Observers) Forget(h store.Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, k := range o.keys {
		if k.handle == h {
			delete(o.keys, id)
			delete(o.byKey, k)
		}
	}
}

// Len reports the number of registered observers.
func (o *Observers) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.keys)
}
