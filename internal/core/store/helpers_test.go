package store_test

import (
	"errors"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/lowengine/lowgo/internal/core/store"
)

// expectViolation runs fn and asserts it panics with a precondition
// violation wrapping target.
func expectViolation(t *testing.T, target error, fn func()) *store.PreconditionViolation {
	t.Helper()
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		fn()
	}()
	v, ok := recovered.(*store.PreconditionViolation)
	assert.Assert(t, ok, "expected *PreconditionViolation, got %#v", recovered)
	assert.Assert(t, errors.Is(v, target), "got %v, want %v", v, target)
	return v
}

type transform struct {
	Name     string
	Position [3]float32
	Children []uint64
	Tags     map[string]int
	Dirty    bool
}
