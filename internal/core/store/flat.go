package store

import (
	"go.uber.org/zap"
)

// Flat is a growable store backed by one record slice and one slot slice.
// It has no internal locking: callers keep it on a single goroutine or
// serialize access themselves.
type Flat[T any] struct {
	typeID  uint16
	name    string
	records []T
	slots   []Slot
	living  uint32
	hooks   Hooks[T]
	log     *zap.Logger
	// genBase is the generation every newly allocated slot starts at. Cleanup
	// raises it so handles from before the teardown never match again.
	genBase uint16
}

// NewFlat creates a flat store with room for capacity records before the
// first growth.
func NewFlat[T any](typeID uint16, name string, capacity uint32, log *zap.Logger) *Flat[T] {
	if log == nil {
		log = zap.NewNop()
	}
	if typeID == 0 {
		violate(log, name, "NewFlat", Null, ErrWrongType)
	}
	return &Flat[T]{
		typeID:  typeID,
		name:    name,
		records: make([]T, capacity),
		slots:   make([]Slot, capacity),
		log:     log,
	}
}

func (s *Flat[T]) TypeID() uint16   { return s.typeID }
func (s *Flat[T]) Name() string     { return s.name }
func (s *Flat[T]) Capacity() uint32 { return uint32(len(s.slots)) }

// LivingCount returns the number of occupied slots.
func (s *Flat[T]) LivingCount() uint32 { return s.living }

func (s *Flat[T]) SetHooks(hooks Hooks[T]) { s.hooks = hooks }

// Make occupies the lowest free slot, growing the store when every slot is
// taken. The record starts as T's zero value and is then passed to init.
func (s *Flat[T]) Make(init func(*T)) Handle {
	index, ok := s.firstFree()
	if !ok {
		index = s.Capacity()
		s.increaseBudget()
	}

	slot := &s.slots[index]
	slot.occupy()
	s.living++

	h := Handle{Index: index, Generation: slot.Generation, Type: s.typeID}
	rec := &s.records[index]
	var zero T
	*rec = zero
	if init != nil {
		init(rec)
	}
	if s.hooks.OnCreate != nil {
		s.hooks.OnCreate(h, rec)
	}
	return h
}

// Destroy releases the record behind h. Destroying a dead handle is a
// precondition violation.
func (s *Flat[T]) Destroy(h Handle) {
	if !s.IsAlive(h) {
		violate(s.log, s.name, "Destroy", h, ErrDeadHandle)
	}
	rec := &s.records[h.Index]
	if s.hooks.OnDestroy != nil {
		s.hooks.OnDestroy(h, rec)
	}
	var zero T
	*rec = zero
	s.slots[h.Index].release()
	s.living--
}

func (s *Flat[T]) IsAlive(h Handle) bool {
	if h.Type != s.typeID || h.Index >= s.Capacity() {
		return false
	}
	return s.slots[h.Index].matches(h)
}

// FindByIndex builds a handle from the slot's current generation without
// checking occupancy. Callers must still ask IsAlive.
func (s *Flat[T]) FindByIndex(index uint32) Handle {
	if index >= s.Capacity() {
		violate(s.log, s.name, "FindByIndex", Handle{Index: index, Type: s.typeID}, ErrOutOfBounds)
	}
	return Handle{Index: index, Generation: s.slots[index].Generation, Type: s.typeID}
}

// FindBy returns the first living record matching pred, or Null.
func (s *Flat[T]) FindBy(pred func(*T) bool) Handle {
	for i := range s.slots {
		if s.slots[i].Occupied && pred(&s.records[i]) {
			return s.handleAt(uint32(i))
		}
	}
	return Null
}

func (s *Flat[T]) Get(h Handle) (T, bool) {
	if !s.IsAlive(h) {
		var zero T
		return zero, false
	}
	return s.records[h.Index], true
}

func (s *Flat[T]) Set(h Handle, v T) bool {
	if !s.IsAlive(h) {
		return false
	}
	s.records[h.Index] = v
	return true
}

// View and Update are equivalent for Flat; both exist so callers can state
// intent and switch to Paged without edits.
func (s *Flat[T]) View(h Handle, fn func(*T)) bool {
	return s.Update(h, fn)
}

func (s *Flat[T]) Update(h Handle, fn func(*T)) bool {
	if !s.IsAlive(h) {
		return false
	}
	fn(&s.records[h.Index])
	return true
}

// Each visits living records in index order.
func (s *Flat[T]) Each(fn func(Handle, *T)) {
	for i := range s.slots {
		if s.slots[i].Occupied {
			fn(s.handleAt(uint32(i)), &s.records[i])
		}
	}
}

func (s *Flat[T]) LivingInstances() []Handle {
	out := make([]Handle, 0, s.living)
	for i := range s.slots {
		if s.slots[i].Occupied {
			out = append(out, s.handleAt(uint32(i)))
		}
	}
	return out
}

// Cleanup destroys every living record and drops the storage. The store
// stays usable; handles issued before Cleanup stay dead.
func (s *Flat[T]) Cleanup() {
	for _, h := range s.LivingInstances() {
		s.Destroy(h)
	}
	s.genBase = maxGeneration(s.slots, s.genBase)
	s.records = nil
	s.slots = nil
	s.living = 0
}

func (s *Flat[T]) firstFree() (uint32, bool) {
	for i := range s.slots {
		if !s.slots[i].Occupied {
			return uint32(i), true
		}
	}
	return 0, false
}

func (s *Flat[T]) handleAt(index uint32) Handle {
	return Handle{Index: index, Generation: s.slots[index].Generation, Type: s.typeID}
}

// increaseBudget reallocates both slices at the next capacity. Records are
// stored row-major, so one bulk copy per slice relocates every field.
func (s *Flat[T]) increaseBudget() {
	old := s.Capacity()
	capacity, err := nextCapacity(old)
	if err != nil {
		violate(s.log, s.name, "increaseBudget", Null, err)
	}

	records := make([]T, capacity)
	copy(records, s.records)
	slots := make([]Slot, capacity)
	copy(slots, s.slots)
	for i := old; i < capacity; i++ {
		slots[i].Generation = s.genBase
	}
	s.records = records
	s.slots = slots

	s.log.Debug("store grown",
		zap.String("store", s.name),
		zap.Uint32("from", old),
		zap.Uint32("to", capacity),
	)
}
