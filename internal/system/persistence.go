package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	coresys "github.com/lowengine/lowgo/internal/core/system"
	"github.com/lowengine/lowgo/internal/core/world"
)

// PersistenceSystem periodically snapshots every serializable record.
// Phase 3 (Persist).
type PersistenceSystem struct {
	world     *world.World
	repo      world.SnapshotStore
	log       *zap.Logger
	tickCount int
	interval  int // save every N ticks
	saved     int
}

func NewPersistenceSystem(w *world.World, repo world.SnapshotStore, log *zap.Logger, intervalTicks int) *PersistenceSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &PersistenceSystem{
		world:    w,
		repo:     repo,
		log:      log,
		interval: max(intervalTicks, 1),
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.SaveAll()
}

// SaveAll snapshots the world immediately. Called for graceful shutdown.
func (s *PersistenceSystem) SaveAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := s.world.Save(ctx, s.repo)
	if err != nil {
		s.log.Error("snapshot failed", zap.Error(err))
		return
	}
	s.saved += n
	s.log.Debug("snapshot saved", zap.Int("records", n))
}

// Saved reports the total number of records written so far.
func (s *PersistenceSystem) Saved() int { return s.saved }
