package tritier

// TierStats is a point-in-time snapshot of one tier's counters.
type TierStats struct {
	Queued   int64
	Executed int64
}

// Statistics is the engine-wide snapshot spec.md §6 calls
// `statistics() → { fast, slow, snail: { queued, executed } }`.
type Statistics struct {
	Fast  TierStats
	Slow  TierStats
	Snail TierStats
}

// Statistics returns a snapshot of queue depth and execution counts for
// every tier, safe to call from any goroutine while the engine is running
// (or after Stop).
func (e *Engine) Statistics() Statistics {
	e.mu.Lock()
	fast, slow, snail := e.fast, e.slow, e.snail
	e.mu.Unlock()

	var stats Statistics
	if fast != nil {
		stats.Fast = TierStats{Queued: fast.queuedCount(), Executed: fast.executedCount()}
	}
	if slow != nil {
		stats.Slow = TierStats{Queued: slow.queuedCount(), Executed: slow.executedCount()}
	}
	if snail != nil {
		stats.Snail = TierStats{Queued: snail.queuedCount(), Executed: snail.executedCount()}
	}
	return stats
}
