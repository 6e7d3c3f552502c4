package store

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrDeadHandle       = errors.New("handle is not alive")
	ErrOutOfBounds      = errors.New("index out of bounds")
	ErrCapacityOverflow = errors.New("capacity would overflow 32-bit index space")
	ErrWrongType        = errors.New("handle belongs to another type")
)

// PreconditionViolation is the panic value raised when a caller breaks a
// store contract. It is never returned as an ordinary error.
type PreconditionViolation struct {
	Store  string
	Op     string
	Handle Handle
	Err    error
}

func (e *PreconditionViolation) Error() string {
	return fmt.Sprintf("%s.%s(%s): %v", e.Store, e.Op, e.Handle, e.Err)
}

func (e *PreconditionViolation) Unwrap() error { return e.Err }

// violate logs and aborts the current operation.
func violate(log *zap.Logger, storeName, op string, h Handle, err error) {
	v := &PreconditionViolation{Store: storeName, Op: op, Handle: h, Err: err}
	log.Error("store precondition violated",
		zap.String("store", storeName),
		zap.String("op", op),
		zap.Stringer("handle", h),
		zap.Error(err),
	)
	panic(v)
}
