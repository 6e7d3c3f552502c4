package store

import "fmt"

// Handle identifies a record inside a store without exposing its memory.
// A handle is valid while the slot at Index is occupied and carries the same
// generation. The zero value is the null handle and is never valid.
type Handle struct {
	Index      uint32
	Generation uint16
	Type       uint16
}

// Null is the dead handle returned by lookups that miss.
var Null Handle

// HandleFromID unpacks a 64-bit handle id: index in the low 32 bits,
// generation in the next 16, type id in the top 16.
func HandleFromID(id uint64) Handle {
	return Handle{
		Index:      uint32(id),
		Generation: uint16(id >> 32),
		Type:       uint16(id >> 48),
	}
}

// ID packs the handle into its 64-bit wire form.
func (h Handle) ID() uint64 {
	return uint64(h.Index) | uint64(h.Generation)<<32 | uint64(h.Type)<<48
}

func (h Handle) IsNull() bool { return h == Null }

func (h Handle) String() string {
	if h.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%d:%d@%d", h.Type, h.Index, h.Generation)
}
