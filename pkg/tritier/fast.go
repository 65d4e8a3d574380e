package tritier

import (
	"sync"
	"time"
)

// newFastTier builds the Fast tier: items whose deadline has arrived are
// fired; the rest are re-queued to Fast itself. Cadence equals the engine's
// base frequency (spec.md §4.3).
func newFastTier(frequency time.Duration) *tier {
	t := newTier("fast", frequency)
	t.process = fastProcess(t)
	return t
}

func fastProcess(t *tier) func(*handle, time.Time, []WorkItem) {
	return func(h *handle, now time.Time, batch []WorkItem) {
		var mu sync.Mutex
		readd := make([]WorkItem, 0, len(batch))

		results := h.dispatch.run(batch, func(item WorkItem) error {
			if item.Deadline().After(now) {
				mu.Lock()
				readd = append(readd, item)
				mu.Unlock()
				return nil
			}
			err := item.Execute()
			t.executed.Add(1)
			h.metrics.OnExecute(t.name)
			return err
		})

		h.metrics.OnDispatch(t.name, len(batch))
		recordExceptions(h, t.name, now, results)
		t.inbox.PushAll(readd)
	}
}

// recordExceptions appends an ExceptionRecord for every failed dispatch
// result onto the sink, per spec.md §4.6: a per-item fault is caught and
// recorded, never allowed to cancel the rest of the batch or the loop.
func recordExceptions(h *handle, tierName string, now time.Time, results []dispatchResult) {
	for _, r := range results {
		if r.err == nil {
			continue
		}
		h.metrics.OnFault(tierName)
		h.sink.Push(ExceptionRecord{
			ID:         h.newExceptionID(),
			Kind:       ExceptionPerItem,
			Tier:       tierName,
			Err:        r.err,
			OccurredAt: now,
		})
	}
}
