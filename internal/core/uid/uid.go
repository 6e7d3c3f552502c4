// Package uid hands out process-unique 64-bit ids and keeps the table that
// maps them back to live handles.
package uid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/lowengine/lowgo/internal/core/store"
)

// UniqueID survives serialization, unlike a Handle whose index and
// generation are only meaningful inside one process.
type UniqueID uint64

var (
	ErrZeroID    = errors.New("unique id must be non-zero")
	ErrDuplicate = errors.New("unique id already registered")
)

func (id UniqueID) String() string { return ToString(id) }

// ToString renders id as 16 hex digits, the form written under _unique_id.
func ToString(id UniqueID) string {
	return fmt.Sprintf("%016x", uint64(id))
}

// FromString parses the output of ToString.
func FromString(s string) (UniqueID, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse unique id %q: %w", s, err)
	}
	return UniqueID(v), nil
}

// Generator derives ids from the handle, the clock and a counter.
type Generator struct {
	counter atomic.Uint64
}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate never returns 0.
func (g *Generator) Generate(h store.Handle) UniqueID {
	for {
		var buf [24]byte
		binary.LittleEndian.PutUint64(buf[0:], h.ID())
		binary.LittleEndian.PutUint64(buf[8:], uint64(time.Now().UnixNano()))
		binary.LittleEndian.PutUint64(buf[16:], g.counter.Add(1))
		sum := blake2b.Sum256(buf[:])
		if id := UniqueID(binary.LittleEndian.Uint64(sum[:8])); id != 0 {
			return id
		}
	}
}

// Table maps unique ids to the handles currently carrying them.
type Table struct {
	mu  sync.RWMutex
	ids map[UniqueID]store.Handle
	log *zap.Logger
}

func NewTable(log *zap.Logger) *Table {
	if log == nil {
		log = zap.NewNop()
	}
	return &Table{
		ids: make(map[UniqueID]store.Handle, 256),
		log: log,
	}
}

// Register binds id to h. Re-registering the same pair is a no-op.
func (t *Table) Register(id UniqueID, h store.Handle) error {
	if id == 0 {
		return ErrZeroID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.ids[id]; ok && prev != h {
		t.log.Warn("unique id collision",
			zap.Stringer("id", id),
			zap.Stringer("existing", prev),
			zap.Stringer("handle", h),
		)
		return fmt.Errorf("register %s for %s: %w (held by %s)", id, h, ErrDuplicate, prev)
	}
	t.ids[id] = h
	return nil
}

func (t *Table) Remove(id UniqueID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ids, id)
}

// Find returns store.Null when id is unknown.
func (t *Table) Find(id UniqueID) store.Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ids[id]
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ids)
}

func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ids = make(map[UniqueID]store.Handle, 256)
}
