package system

import (
	"time"

	coresys "github.com/lowengine/lowgo/internal/core/system"
	"github.com/lowengine/lowgo/internal/core/world"
)

// CleanupSystem flushes the deferred destruction queue at tick end.
// Phase 4 (Cleanup).
type CleanupSystem struct {
	world     *world.World
	destroyed int
}

func NewCleanupSystem(w *world.World) *CleanupSystem {
	return &CleanupSystem{world: w}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.destroyed += s.world.FlushDestroyQueue()
}

// Destroyed reports how many handles the system has destroyed so far.
func (s *CleanupSystem) Destroyed() int { return s.destroyed }
