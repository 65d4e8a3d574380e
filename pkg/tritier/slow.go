package tritier

import (
	"sync"
	"time"
)

// newSlowTier builds the Slow tier. Slow never executes items directly; it
// only reclassifies as deadlines draw in, promoting to Fast where
// appropriate (spec.md §4.4).
//
// Cadence scales with how many fastThreshold-sized steps fit in the Slow
// band:
//
//	slowCadence = max(frequency, floor((slowThreshold-fastThreshold)/fastThreshold) * frequency)
//
// When the resulting cadence is longer than fastThreshold, an item that
// enters Slow close to fastThreshold can reach its deadline before the next
// Slow wake promotes it; it then fires on the first Fast pass after that.
//
// spec.md §9 flags the source's version of this formula as dividing
// without an absolute value, which can yield a near-zero cadence for a
// small threshold gap; this computes the division first and only then
// clamps with max(frequency, …), so it can never underflow into a tight
// spin even when slowThreshold is only slightly larger than fastThreshold.
func newSlowTier(frequency, fastThreshold, slowThreshold time.Duration) *tier {
	cadence := slowCadence(frequency, fastThreshold, slowThreshold)
	t := newTier("slow", cadence)
	t.process = slowProcess(t)
	return t
}

func slowCadence(frequency, fastThreshold, slowThreshold time.Duration) time.Duration {
	if fastThreshold <= 0 {
		return frequency
	}
	multiple := int64((slowThreshold - fastThreshold) / fastThreshold)
	cadence := time.Duration(multiple) * frequency
	if cadence < frequency {
		return frequency
	}
	return cadence
}

func slowProcess(t *tier) func(*handle, time.Time, []WorkItem) {
	return func(h *handle, now time.Time, batch []WorkItem) {
		var mu sync.Mutex
		var fastList, selfList []WorkItem

		results := h.dispatch.run(batch, func(item WorkItem) error {
			remaining := item.Deadline().Sub(now)
			switch {
			case remaining <= h.fastThreshold:
				mu.Lock()
				fastList = append(fastList, item)
				mu.Unlock()
				h.metrics.OnPromote("slow", "fast")
			case remaining <= h.slowThreshold:
				mu.Lock()
				selfList = append(selfList, item)
				mu.Unlock()
			default:
				// Should never happen under normal submission — an item
				// resident in Slow whose remaining time has grown past
				// slowThreshold indicates a clock jump or classification
				// bug. spec.md §4.4/§9: Slow never demotes, so it stays in
				// Slow's own list, but the anomaly is surfaced on the sink
				// rather than silently swallowed.
				mu.Lock()
				selfList = append(selfList, item)
				mu.Unlock()
				h.sink.Push(ExceptionRecord{
					ID:         h.newExceptionID(),
					Kind:       ExceptionLoop,
					Tier:       t.name,
					Err:        errAnomalousRemaining,
					OccurredAt: now,
				})
			}
			return nil
		})

		h.metrics.OnDispatch(t.name, len(batch))
		recordExceptions(h, t.name, now, results)
		h.fastInbox.PushAll(fastList)
		t.inbox.PushAll(selfList)
	}
}
