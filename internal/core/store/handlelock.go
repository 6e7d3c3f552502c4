package store

// HandleLock is a scoped guard over one record of a Paged store. While it is
// held the record's page is locked, so several fields can be read or written
// as one step. It is not re-entrant: touching any record of the same page
// through the store before Unlock deadlocks.
type HandleLock[T any] struct {
	handle Handle
	page   *page[T]
	rec    *T
	held   bool
}

// Lock returns a guard for h, or nil when h is not alive.
func (s *Paged[T]) Lock(h Handle) *HandleLock[T] {
	if h.Type != s.typeID {
		return nil
	}
	p, slot, ok := s.pageFor(h.Index)
	if !ok {
		return nil
	}
	p.mu.Lock()
	if !p.slots[slot].matches(h) {
		p.mu.Unlock()
		return nil
	}
	return &HandleLock[T]{handle: h, page: p, rec: &p.records[slot], held: true}
}

func (l *HandleLock[T]) Handle() Handle { return l.handle }

// Record is valid until Unlock.
func (l *HandleLock[T]) Record() *T { return l.rec }

// Unlock releases the page. Calling it more than once is harmless.
func (l *HandleLock[T]) Unlock() {
	if l == nil || !l.held {
		return
	}
	l.held = false
	l.rec = nil
	l.page.mu.Unlock()
}
