package event

import "github.com/lowengine/lowgo/internal/core/store"

// Lifecycle events emitted by the reference components.

type HandleCreated struct {
	Handle store.Handle
}

type HandleDestroyed struct {
	Handle store.Handle
}
