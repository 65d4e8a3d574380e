package tritier

import "time"

// WorkItem is the capability a payload must expose to be scheduled. The
// engine treats a WorkItem opaquely: it never inspects or mutates anything
// beyond Deadline, and it invokes Execute at most once.
//
// Execute runs on a worker-pool goroutine. Implementations are responsible
// for their own internal thread safety.
type WorkItem interface {
	// Deadline returns the absolute wall-clock instant at which this item
	// becomes eligible to fire.
	Deadline() time.Time

	// Execute performs the item's effect. An error is captured on the
	// engine's exception sink; it is never retried and never propagated to
	// the caller of Submit.
	Execute() error
}

// Func adapts a plain function plus a deadline into a WorkItem, the way a
// caller would wrap a closure for one-off scheduling without defining a
// named type.
type Func struct {
	When time.Time
	Do   func() error
}

// Deadline implements WorkItem.
func (f Func) Deadline() time.Time { return f.When }

// Execute implements WorkItem.
func (f Func) Execute() error { return f.Do() }
