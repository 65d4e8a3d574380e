// Package container holds the thread-safe primitives the tier loops are
// built on: an unbounded multi-producer/single-consumer-batched FIFO (Inbox)
// and a concurrent FIFO used for the exception sink (Sink, in sink.go).
//
// Both are backed by container/list under a single sync.Mutex, the same
// choice the teacher's queue package makes for its in-memory ready list —
// a linked list gives O(1) push-back and a bulk-drain that copies the queued
// items into one slice and swaps in a fresh list, without the resizing churn
// of a slice-backed queue under sustained append/drain cycles.
package container

import (
	"container/list"
	"sync"
)

// Inbox is a tier's pending-item queue. Many producers may Push
// concurrently; DrainAll is meant to be called by a single consumer (the
// tier's own loop) and atomically hands back everything pushed since the
// last drain while resetting the count to zero.
type Inbox[T any] struct {
	mu    sync.Mutex
	items *list.List
}

// NewInbox returns an empty Inbox.
func NewInbox[T any]() *Inbox[T] {
	return &Inbox[T]{items: list.New()}
}

// Push appends a single item.
func (b *Inbox[T]) Push(item T) {
	b.mu.Lock()
	b.items.PushBack(item)
	b.mu.Unlock()
}

// PushAll appends every item in items, preserving order, under a single
// lock acquisition — used when a tier re-enqueues a spill list so the whole
// batch becomes visible to the next drain atomically.
func (b *Inbox[T]) PushAll(items []T) {
	if len(items) == 0 {
		return
	}
	b.mu.Lock()
	for _, it := range items {
		b.items.PushBack(it)
	}
	b.mu.Unlock()
}

// DrainAll atomically removes and returns every item currently queued, in
// FIFO order, and resets the inbox to empty. Items pushed after DrainAll
// returns are not included and accumulate for the next drain.
func (b *Inbox[T]) DrainAll() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.items.Len()
	if n == 0 {
		return nil
	}
	out := make([]T, 0, n)
	for e := b.items.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(T))
	}
	b.items = list.New()
	return out
}

// Len returns the number of items currently queued. It is a point-in-time
// snapshot; producers may be appending concurrently.
func (b *Inbox[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items.Len()
}
