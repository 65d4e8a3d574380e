package tritier

import (
	"sync/atomic"
	"time"

	"github.com/arikfeldman/tritier/pkg/tritier/container"
)

// tierState is one node of the per-tier state machine spec.md §4.7
// describes: Idle → Draining → Processing → Requeueing → Sleeping → Idle,
// with Stopped reachable from any state once wantExit is observed.
type tierState int32

const (
	stateIdle tierState = iota
	stateDraining
	stateProcessing
	stateRequeueing
	stateSleeping
	stateStopped
)

func (s tierState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateDraining:
		return "draining"
	case stateProcessing:
		return "processing"
	case stateRequeueing:
		return "requeueing"
	case stateSleeping:
		return "sleeping"
	case stateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// handle is the narrow view of the Engine each tier loop is given at Start,
// replacing a cyclic tier→engine back-pointer (spec.md §9's redesign note).
// A tier can reach the exception sink, its peers' inboxes, the
// classification thresholds, the clock, the dispatcher, the metrics hook and
// the exception-ID source — nothing else. Shutdown is observed purely
// through tier.wantExit, set by Engine.Stop via requestExit.
type handle struct {
	clock          Clock
	fastThreshold  time.Duration
	slowThreshold  time.Duration
	fastInbox      *container.Inbox[WorkItem]
	slowInbox      *container.Inbox[WorkItem]
	snailInbox     *container.Inbox[WorkItem]
	sink           *container.Sink[ExceptionRecord]
	dispatch       *dispatcher
	metrics        Metrics
	newExceptionID func() string
}

// tier is the shared skeleton every one of fast/slow/snail runs: drain the
// inbox to a local batch, process it in parallel, re-enqueue whatever
// spills out, sleep for the cadence, repeat. The per-tier policy (what
// "process" does with each item) is supplied by process.
type tier struct {
	name     string
	inbox    *container.Inbox[WorkItem]
	cadence  time.Duration
	executed atomic.Int64
	state    atomic.Int32
	wantExit atomic.Bool
	stopped  chan struct{}

	// process runs once per pass with the batch drained for that pass and
	// the single "now" captured for the whole batch, per spec.md §4.2. It
	// returns once every item in the batch has either executed or been
	// routed to a spill list and re-enqueued.
	process func(h *handle, now time.Time, batch []WorkItem)
}

func newTier(name string, cadence time.Duration) *tier {
	return &tier{
		name:    name,
		inbox:   container.NewInbox[WorkItem](),
		cadence: cadence,
		stopped: make(chan struct{}),
	}
}

func (t *tier) setState(s tierState) { t.state.Store(int32(s)) }

func (t *tier) queuedCount() int64 { return int64(t.inbox.Len()) }

func (t *tier) executedCount() int64 { return t.executed.Load() }

// requestExit asks the loop to terminate at the next opportunity. A batch
// drained after the flag is observed is dropped without being processed, and
// no further pass begins. A pass that is already inside process when the
// flag is set runs to completion, including its re-enqueue of spill lists
// onto the inboxes; those items are not drained again.
func (t *tier) requestExit() { t.wantExit.Store(true) }

// run is the tier's long-lived worker goroutine body.
func (t *tier) run(h *handle) {
	defer close(t.stopped)

	ticker := time.NewTicker(t.cadence)
	defer ticker.Stop()

	for {
		if t.wantExit.Load() {
			t.setState(stateStopped)
			return
		}

		t.setState(stateDraining)
		batch := t.inbox.DrainAll()

		t.setState(stateProcessing)
		now := h.clock.Now()
		exiting := t.wantExit.Load()
		if len(batch) > 0 {
			if exiting {
				// spec.md §4.7: spill lists are discarded on exit, so skip
				// straight past Requeueing rather than calling process,
				// which would otherwise re-enqueue onto inboxes no one will
				// ever drain again.
				t.setState(stateStopped)
				return
			}
			t.process(h, now, batch)
		}
		t.setState(stateRequeueing)

		t.setState(stateSleeping)
		if t.wantExit.Load() {
			t.setState(stateStopped)
			return
		}
		<-ticker.C
	}
}
