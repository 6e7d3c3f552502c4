package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput   Phase = iota // 0: drive workloads, create and mark records
	PhaseUpdate               // 1: mutate living records
	PhaseEvents               // 2: swap and dispatch lifecycle events
	PhasePersist              // 3: periodic snapshots
	PhaseCleanup              // 4: destroy queued handles
)

// System is the interface every scheduled job implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
