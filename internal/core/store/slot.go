package store

// Slot is the per-index liveness record backing a Handle's validity check.
// Generation only moves forward; it wraps at 65535, a known limitation.
type Slot struct {
	Occupied   bool
	Generation uint16
}

func (s *Slot) occupy() {
	s.Occupied = true
}

// release frees the slot and invalidates every outstanding handle to it.
func (s *Slot) release() {
	s.Occupied = false
	s.Generation++
}

func (s *Slot) matches(h Handle) bool {
	return s.Occupied && s.Generation == h.Generation
}

// maxGeneration returns the highest generation in slots, or floor when it
// is higher. Every slot is free when this is called, so each generation is
// already past the handles issued for that slot.
func maxGeneration(slots []Slot, floor uint16) uint16 {
	for i := range slots {
		floor = max(floor, slots[i].Generation)
	}
	return floor
}
