// Package tritier implements a three-tier deadline scheduler.
//
// Submitted work items are classified by remaining time-to-deadline into one
// of three tiers — fast, slow, or snail — and re-tiered as their deadlines
// approach. Each tier runs its own loop at its own cadence, draining its
// inbox into a batch and processing the batch in parallel via a bounded
// worker pool. Items only ever move toward the fast tier; they never demote.
//
// The engine is a library: callers construct an Engine, Start it with a
// frequency and two thresholds, Submit work items, and Stop it when done.
// Faults raised by a work item's Execute are never surfaced synchronously —
// they accumulate on an exception sink that the host drains on its own
// schedule.
package tritier
