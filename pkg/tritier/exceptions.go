package tritier

import "time"

// ExceptionKind classifies where an ExceptionRecord originated, mirroring
// spec.md §7's taxonomy (submission/per-item/loop/teardown errors — minus
// submission errors, which are surfaced synchronously and never reach the
// sink).
type ExceptionKind string

const (
	// ExceptionPerItem is a fault raised by a work item's own Execute.
	ExceptionPerItem ExceptionKind = "per_item"
	// ExceptionLoop is an unexpected failure inside a tier loop outside of
	// any single item's action (e.g. a reclassification bug).
	ExceptionLoop ExceptionKind = "loop"
	// ExceptionTeardown is a failure encountered while Stop is tearing a
	// tier worker down.
	ExceptionTeardown ExceptionKind = "teardown"
)

// ExceptionRecord describes one asynchronous fault. Records are appended to
// the engine's exception sink and never block the tier that raised them.
type ExceptionRecord struct {
	ID         string
	Kind       ExceptionKind
	Tier       string
	Err        error
	OccurredAt time.Time
}
