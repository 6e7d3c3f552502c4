package main

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lowengine/lowgo/internal/component"
	"github.com/lowengine/lowgo/internal/config"
	"github.com/lowengine/lowgo/internal/core/store"
	coresys "github.com/lowengine/lowgo/internal/core/system"
	"github.com/lowengine/lowgo/internal/core/world"
)

// workloadSystem hammers the paged transform store from several goroutines
// each tick. Every worker makes records, parents every fourth one under the
// root, destroys some immediately and queues others for the cleanup phase.
// Phase 0 (Input).
type workloadSystem struct {
	w          *world.World
	transforms *component.Transforms
	root       store.Handle
	cfg        config.WorkloadConfig
	log        *zap.Logger
	tick       int
}

func newWorkloadSystem(w *world.World, transforms *component.Transforms, root store.Handle, cfg config.WorkloadConfig, log *zap.Logger) *workloadSystem {
	return &workloadSystem{
		w:          w,
		transforms: transforms,
		root:       root,
		cfg:        cfg,
		log:        log,
	}
}

func (s *workloadSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *workloadSystem) Update(_ time.Duration) {
	s.tick++
	start := time.Now()

	var wg sync.WaitGroup
	for worker := 0; worker < s.cfg.Workers; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			s.run(worker)
		}(worker)
	}
	wg.Wait()

	s.log.Debug("workload tick",
		zap.Int("tick", s.tick),
		zap.Uint32("alive", s.transforms.Store().LivingCount()),
		zap.Int("queued", s.w.Queued()),
		zap.Duration("took", time.Since(start)),
	)
}

func (s *workloadSystem) run(worker int) {
	for i := 0; i < s.cfg.PerWorker; i++ {
		h := s.transforms.Make(fmt.Sprintf("w%d_t%d_%d", worker, s.tick, i))
		s.transforms.Update(h, func(tr *component.Transform) {
			tr.Position = component.Vector3{X: float32(worker), Y: float32(s.tick), Z: float32(i)}
		})
		switch i % 4 {
		case 0:
			s.transforms.Destroy(h)
		case 1:
			s.w.MarkForDestruction(h)
		case 2:
			// Kept alive across ticks.
		case 3:
			// Every worker appends to the root's children list.
			if err := s.transforms.SetParent(h, s.root); err != nil {
				s.log.Warn("set parent failed", zap.Stringer("transform", h), zap.Error(err))
			}
		}
	}
}
