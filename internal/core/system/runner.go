package system

import (
	"sort"
	"time"
)

// Runner executes systems in phase order each tick. Systems sharing a phase
// run in registration order.
type Runner struct {
	systems []System
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
	}
}

// Register inserts s after every system of the same or an earlier phase.
func (r *Runner) Register(s System) {
	i := sort.Search(len(r.systems), func(i int) bool {
		return r.systems[i].Phase() > s.Phase()
	})
	r.systems = append(r.systems, nil)
	copy(r.systems[i+1:], r.systems[i:])
	r.systems[i] = s
}

func (r *Runner) Tick(dt time.Duration) {
	for _, s := range r.systems {
		s.Update(dt)
	}
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

// Len reports the number of registered systems.
func (r *Runner) Len() int { return len(r.systems) }
