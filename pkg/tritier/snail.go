package tritier

import (
	"sync"
	"time"
)

// newSnailTier builds the Snail tier: long-horizon items that reclassify
// into Fast, Slow, or back to Snail itself on every pass (spec.md §4.5).
//
// Cadence makes Snail wake less often than Slow, since Snail items are by
// construction far from firing:
//
//	snailCadence = (floor(|slowThreshold-fastThreshold|/fastThreshold) + 3) * frequency
func newSnailTier(frequency, fastThreshold, slowThreshold time.Duration) *tier {
	cadence := snailCadence(frequency, fastThreshold, slowThreshold)
	t := newTier("snail", cadence)
	t.process = snailProcess(t)
	return t
}

func snailCadence(frequency, fastThreshold, slowThreshold time.Duration) time.Duration {
	if fastThreshold <= 0 {
		return frequency
	}
	gap := slowThreshold - fastThreshold
	if gap < 0 {
		gap = -gap
	}
	multiple := int64(gap/fastThreshold) + 3
	cadence := time.Duration(multiple) * frequency
	if cadence < frequency {
		return frequency
	}
	return cadence
}

func snailProcess(t *tier) func(*handle, time.Time, []WorkItem) {
	return func(h *handle, now time.Time, batch []WorkItem) {
		var mu sync.Mutex
		var fastList, slowList, selfList []WorkItem

		results := h.dispatch.run(batch, func(item WorkItem) error {
			remaining := item.Deadline().Sub(now)
			switch {
			case remaining <= h.fastThreshold:
				mu.Lock()
				fastList = append(fastList, item)
				mu.Unlock()
				h.metrics.OnPromote("snail", "fast")
			case remaining <= h.slowThreshold:
				mu.Lock()
				slowList = append(slowList, item)
				mu.Unlock()
				h.metrics.OnPromote("snail", "slow")
			default:
				mu.Lock()
				selfList = append(selfList, item)
				mu.Unlock()
			}
			return nil
		})

		h.metrics.OnDispatch(t.name, len(batch))
		recordExceptions(h, t.name, now, results)
		h.fastInbox.PushAll(fastList)
		h.slowInbox.PushAll(slowList)
		t.inbox.PushAll(selfList)
	}
}
