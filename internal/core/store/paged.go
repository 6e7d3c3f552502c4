package store

import (
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// page is a fixed-capacity chunk of a Paged store. Its records and slots are
// only touched while mu is held.
type page[T any] struct {
	mu      sync.Mutex
	records []T
	slots   []Slot
	living  uint32
}

func newPage[T any](size uint32, gen uint16) *page[T] {
	p := &page[T]{
		records: make([]T, size),
		slots:   make([]Slot, size),
	}
	for i := range p.slots {
		p.slots[i].Generation = gen
	}
	return p
}

func (p *page[T]) firstFree() (uint32, bool) {
	for i := range p.slots {
		if !p.slots[i].Occupied {
			return uint32(i), true
		}
	}
	return 0, false
}

// Paged is a store safe for concurrent use. It grows by appending whole
// pages, so records never move once allocated.
//
// Lock order is directory first, then page. A page lock is never held while
// waiting for the directory lock.
type Paged[T any] struct {
	typeID   uint16
	name     string
	pageSize uint32
	log      *zap.Logger
	hooks    atomic.Pointer[Hooks[T]]

	pagesMu sync.RWMutex
	pages   []*page[T]
	genBase uint16 // starting generation of new pages; guarded by pagesMu
}

// NewPaged creates a paged store with enough pages for capacity records.
// At least one page is always allocated.
func NewPaged[T any](typeID uint16, name string, capacity uint32, log *zap.Logger) *Paged[T] {
	if log == nil {
		log = zap.NewNop()
	}
	if typeID == 0 {
		violate(log, name, "NewPaged", Null, ErrWrongType)
	}
	s := &Paged[T]{
		typeID:   typeID,
		name:     name,
		pageSize: PageSize(capacity),
		log:      log,
	}
	s.hooks.Store(&Hooks[T]{})
	count := max((uint64(capacity)+uint64(s.pageSize)-1)/uint64(s.pageSize), 1)
	s.pages = make([]*page[T], 0, count)
	for range count {
		s.pages = append(s.pages, newPage[T](s.pageSize, 0))
	}
	return s
}

func (s *Paged[T]) TypeID() uint16   { return s.typeID }
func (s *Paged[T]) Name() string     { return s.name }
func (s *Paged[T]) PageSize() uint32 { return s.pageSize }

func (s *Paged[T]) SetHooks(hooks Hooks[T]) { s.hooks.Store(&hooks) }

func (s *Paged[T]) Capacity() uint32 {
	s.pagesMu.RLock()
	defer s.pagesMu.RUnlock()
	return s.capacityLocked()
}

func (s *Paged[T]) capacityLocked() uint32 {
	return uint32(len(s.pages)) * s.pageSize
}

// Make occupies a free slot in the first page that has one, appending a
// page when all are full. init runs while the owning page is locked.
func (s *Paged[T]) Make(init func(*T)) Handle {
	if h, ok := s.makeInExisting(init); ok {
		return h
	}

	s.pagesMu.Lock()
	defer s.pagesMu.Unlock()
	// Other goroutines may have appended pages or freed slots while the
	// directory was unlocked.
	for i := range s.pages {
		if h, ok := s.tryMake(i, init); ok {
			return h
		}
	}
	index := s.appendPageLocked()
	h, _ := s.tryMake(index, init)
	return h
}

func (s *Paged[T]) makeInExisting(init func(*T)) (Handle, bool) {
	s.pagesMu.RLock()
	defer s.pagesMu.RUnlock()
	for i := range s.pages {
		if h, ok := s.tryMake(i, init); ok {
			return h, true
		}
	}
	return Null, false
}

// tryMake must be called with the directory lock held in either mode.
func (s *Paged[T]) tryMake(pageIndex int, init func(*T)) (Handle, bool) {
	p := s.pages[pageIndex]
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.firstFree()
	if !ok {
		return Null, false
	}
	p.slots[slot].occupy()
	p.living++

	h := Handle{
		Index:      uint32(pageIndex)*s.pageSize + slot,
		Generation: p.slots[slot].Generation,
		Type:       s.typeID,
	}
	rec := &p.records[slot]
	var zero T
	*rec = zero
	if init != nil {
		init(rec)
	}
	if hook := s.hooks.Load().OnCreate; hook != nil {
		hook(h, rec)
	}
	return h, true
}

func (s *Paged[T]) appendPageLocked() int {
	capacity := s.capacityLocked()
	if uint64(capacity)+uint64(s.pageSize) > math.MaxUint32 {
		violate(s.log, s.name, "createPage", Null, ErrCapacityOverflow)
	}
	s.pages = append(s.pages, newPage[T](s.pageSize, s.genBase))
	s.log.Debug("store page appended",
		zap.String("store", s.name),
		zap.Int("pages", len(s.pages)),
		zap.Uint32("capacity", s.capacityLocked()),
	)
	return len(s.pages) - 1
}

// pageFor maps an index to its page. The directory lock is held only for
// the lookup; pages are never freed while the store is in use.
func (s *Paged[T]) pageFor(index uint32) (*page[T], uint32, bool) {
	s.pagesMu.RLock()
	defer s.pagesMu.RUnlock()
	if index >= s.capacityLocked() {
		return nil, 0, false
	}
	return s.pages[index/s.pageSize], index % s.pageSize, true
}

func (s *Paged[T]) IsAlive(h Handle) bool {
	if h.Type != s.typeID {
		return false
	}
	p, slot, ok := s.pageFor(h.Index)
	if !ok {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots[slot].matches(h)
}

// Destroy releases the record behind h. Only the owning page is locked.
func (s *Paged[T]) Destroy(h Handle) {
	p, slot, ok := s.pageFor(h.Index)
	if h.Type != s.typeID || !ok {
		violate(s.log, s.name, "Destroy", h, ErrDeadHandle)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.slots[slot].matches(h) {
		violate(s.log, s.name, "Destroy", h, ErrDeadHandle)
	}
	rec := &p.records[slot]
	if hook := s.hooks.Load().OnDestroy; hook != nil {
		hook(h, rec)
	}
	var zero T
	*rec = zero
	p.slots[slot].release()
	p.living--
}

// FindByIndex builds a handle from the slot's current generation without
// checking occupancy. Callers must still ask IsAlive.
func (s *Paged[T]) FindByIndex(index uint32) Handle {
	p, slot, ok := s.pageFor(index)
	if !ok {
		violate(s.log, s.name, "FindByIndex", Handle{Index: index, Type: s.typeID}, ErrOutOfBounds)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return Handle{Index: index, Generation: p.slots[slot].Generation, Type: s.typeID}
}

// FindBy returns the first living record matching pred, or Null. pred runs
// with the page locked.
func (s *Paged[T]) FindBy(pred func(*T) bool) Handle {
	found := Null
	s.eachPage(func(pageIndex int, p *page[T]) bool {
		for i := range p.slots {
			if p.slots[i].Occupied && pred(&p.records[i]) {
				found = s.handleAt(pageIndex, p, uint32(i))
				return false
			}
		}
		return true
	})
	return found
}

func (s *Paged[T]) Get(h Handle) (T, bool) {
	var out T
	ok := s.View(h, func(rec *T) { out = *rec })
	return out, ok
}

func (s *Paged[T]) Set(h Handle, v T) bool {
	return s.Update(h, func(rec *T) { *rec = v })
}

// View and Update run fn with the record's page locked. fn must not call
// back into the store.
func (s *Paged[T]) View(h Handle, fn func(*T)) bool {
	return s.Update(h, fn)
}

func (s *Paged[T]) Update(h Handle, fn func(*T)) bool {
	l := s.Lock(h)
	if l == nil {
		return false
	}
	defer l.Unlock()
	fn(l.Record())
	return true
}

// Each visits living records page by page, holding each page's lock while
// its records are visited.
func (s *Paged[T]) Each(fn func(Handle, *T)) {
	s.eachPage(func(pageIndex int, p *page[T]) bool {
		for i := range p.slots {
			if p.slots[i].Occupied {
				fn(s.handleAt(pageIndex, p, uint32(i)), &p.records[i])
			}
		}
		return true
	})
}

// LivingCount sums the per-page live counters.
func (s *Paged[T]) LivingCount() uint32 {
	var n uint32
	s.eachPage(func(_ int, p *page[T]) bool {
		n += p.living
		return true
	})
	return n
}

func (s *Paged[T]) LivingInstances() []Handle {
	var out []Handle
	s.eachPage(func(pageIndex int, p *page[T]) bool {
		for i := range p.slots {
			if p.slots[i].Occupied {
				out = append(out, s.handleAt(pageIndex, p, uint32(i)))
			}
		}
		return true
	})
	return out
}

// Cleanup destroys every living record and frees all pages. Pages appended
// afterwards start past every generation handed out so far.
func (s *Paged[T]) Cleanup() {
	s.pagesMu.Lock()
	defer s.pagesMu.Unlock()
	hook := s.hooks.Load().OnDestroy
	for pageIndex, p := range s.pages {
		p.mu.Lock()
		for i := range p.slots {
			if !p.slots[i].Occupied {
				continue
			}
			if hook != nil {
				hook(s.handleAt(pageIndex, p, uint32(i)), &p.records[i])
			}
			var zero T
			p.records[i] = zero
			p.slots[i].release()
		}
		p.living = 0
		s.genBase = maxGeneration(p.slots, s.genBase)
		p.mu.Unlock()
	}
	s.pages = nil
}

// eachPage calls fn for every page with that page locked, stopping when fn
// returns false.
func (s *Paged[T]) eachPage(fn func(int, *page[T]) bool) {
	s.pagesMu.RLock()
	defer s.pagesMu.RUnlock()
	for i, p := range s.pages {
		if !visitPage(i, p, fn) {
			return
		}
	}
}

func visitPage[T any](i int, p *page[T], fn func(int, *page[T]) bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(i, p)
}

func (s *Paged[T]) handleAt(pageIndex int, p *page[T], slot uint32) Handle {
	return Handle{
		Index:      uint32(pageIndex)*s.pageSize + slot,
		Generation: p.slots[slot].Generation,
		Type:       s.typeID,
	}
}
