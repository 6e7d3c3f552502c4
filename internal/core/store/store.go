// Package store implements the generational handle stores every engine type
// is built on: Flat for single-goroutine types and Paged for types shared
// between goroutines.
package store

import (
	"math"
	"math/bits"
)

const (
	minPageSize = 8
	maxPageSize = 32
	maxGrowStep = 64
)

// Store is the type-erased face of a store, used by the type registry.
type Store interface {
	TypeID() uint16
	Name() string
	Capacity() uint32
	IsAlive(h Handle) bool
	Destroy(h Handle)
	FindByIndex(index uint32) Handle
	LivingCount() uint32
	LivingInstances() []Handle
	Cleanup()
}

// Accessor is the typed face of a store. Every method that touches a
// record checks the handle first; dead handles report false.
type Accessor[T any] interface {
	Store
	Make(init func(*T)) Handle
	Get(h Handle) (T, bool)
	Set(h Handle, v T) bool
	View(h Handle, fn func(*T)) bool
	Update(h Handle, fn func(*T)) bool
	FindBy(pred func(*T) bool) Handle
	Each(fn func(Handle, *T))
	SetHooks(hooks Hooks[T])
}

// Hooks run inside the store's critical section. They must not call back
// into the same store.
type Hooks[T any] struct {
	OnCreate  func(h Handle, rec *T)
	OnDestroy func(h Handle, rec *T)
}

// nextCapacity grows by up to 64 elements, at least one, and never past the
// 32-bit index space.
func nextCapacity(old uint32) (uint32, error) {
	inc := min(max(old, 1), maxGrowStep)
	if room := math.MaxUint32 - old; inc > room {
		inc = room
	}
	if inc == 0 {
		return old, ErrCapacityOverflow
	}
	return old + inc, nil
}

// PageSize returns the page size used for a paged store of the given
// initial capacity: the next power of two, clamped to [8, 32].
func PageSize(capacity uint32) uint32 {
	if capacity >= maxPageSize {
		return maxPageSize
	}
	p := uint32(1)
	if capacity > 1 {
		p = 1 << bits.Len32(capacity-1)
	}
	return max(p, minPageSize)
}
