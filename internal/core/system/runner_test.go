package system_test

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/lowengine/lowgo/internal/core/system"
)

type recorder struct {
	phase system.Phase
	label string
	log   *[]string
}

func (r recorder) Phase() system.Phase  { return r.phase }
func (r recorder) Update(time.Duration) { *r.log = append(*r.log, r.label) }

func TestRunnerOrdersByPhase(t *testing.T) {
	var log []string
	r := system.NewRunner()
	r.Register(recorder{system.PhaseCleanup, "cleanup", &log})
	r.Register(recorder{system.PhaseInput, "input-a", &log})
	r.Register(recorder{system.PhaseEvents, "events", &log})
	r.Register(recorder{system.PhaseInput, "input-b", &log})
	assert.Equal(t, r.Len(), 4)

	r.Tick(time.Millisecond)
	assert.DeepEqual(t, log, []string{"input-a", "input-b", "events", "cleanup"})

	log = nil
	r.TickPhase(system.PhaseInput, time.Millisecond)
	assert.DeepEqual(t, log, []string{"input-a", "input-b"})
}
