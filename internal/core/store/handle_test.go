package store_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/lowengine/lowgo/internal/core/store"
)

func TestHandleIDRoundTrip(t *testing.T) {
	h := store.Handle{Index: 0xDEADBEEF, Generation: 0x1234, Type: 25}
	id := h.ID()
	assert.Equal(t, id, uint64(0x0019_1234_DEAD_BEEF))
	assert.Equal(t, store.HandleFromID(id), h)
}

func TestNullHandle(t *testing.T) {
	var h store.Handle
	assert.Assert(t, h.IsNull())
	assert.Equal(t, h.ID(), uint64(0))
	assert.Equal(t, h.String(), "null")
	assert.Equal(t, store.Handle{Index: 3, Generation: 2, Type: 9}.String(), "9:3@2")
}
