package uid

import (
	"errors"
	"sync"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/lowengine/lowgo/internal/core/store"
)

func TestStringRoundTrip(t *testing.T) {
	id := UniqueID(0x00ab_cdef_0123_4567)
	s := ToString(id)
	assert.Equal(t, s, "00abcdef01234567")
	back, err := FromString(s)
	assert.NilError(t, err)
	assert.Equal(t, back, id)

	_, err = FromString("not-hex")
	assert.ErrorContains(t, err, "parse unique id")
}

func TestGeneratorUnique(t *testing.T) {
	g := NewGenerator()
	h := store.Handle{Index: 1, Type: 25}
	seen := make(map[UniqueID]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id := g.Generate(h)
				mu.Lock()
				if id == 0 || seen[id] {
					t.Errorf("bad or repeated id %v", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, len(seen), 2000)
}

func TestTable(t *testing.T) {
	tbl := NewTable(nil)
	a := store.Handle{Index: 1, Type: 25}
	b := store.Handle{Index: 2, Type: 25}

	assert.Assert(t, errors.Is(tbl.Register(0, a), ErrZeroID))
	assert.NilError(t, tbl.Register(7, a))
	assert.NilError(t, tbl.Register(7, a))
	err := tbl.Register(7, b)
	assert.Assert(t, errors.Is(err, ErrDuplicate))

	assert.Equal(t, tbl.Find(7), a)
	assert.Assert(t, tbl.Find(8).IsNull())
	assert.Equal(t, tbl.Len(), 1)

	tbl.Remove(7)
	assert.Assert(t, tbl.Find(7).IsNull())
	assert.NilError(t, tbl.Register(7, b))

	tbl.Reset()
	assert.Equal(t, tbl.Len(), 0)
}
