package tritier

// Metrics is an optional hook for observing engine activity, mirroring the
// MetricsHook pattern used for schedule/unschedule/escalate events in the
// escalation-scheduler sibling of this pack: a small set of callbacks the
// host can wire into its own metrics registry. A nil Metrics is valid —
// WithMetrics(nil) leaves the no-op default in place.
type Metrics interface {
	// OnSubmit is called once per Submit, after classification, naming the
	// tier the item was routed to ("fast", "slow", or "snail").
	OnSubmit(tier string)
	// OnExecute is called once per item whose Execute ran, whether it
	// returned nil or an error — a failed item is still counted as executed
	// and separately reported through OnFault.
	OnExecute(tier string)
	// OnFault is called once per Execute error recorded on the exception
	// sink. Loop-level and teardown records are not reported through it.
	OnFault(tier string)
	// OnPromote is called once per item moved from a slower tier to a
	// faster one.
	OnPromote(from, to string)
	// OnDispatch is called once per dispatch batch, naming the tier and the
	// batch size that was fanned out.
	OnDispatch(tier string, batchSize int)
}

// NopMetrics implements Metrics with no-op methods, used as the Engine's
// default when no Metrics is supplied via WithMetrics.
type NopMetrics struct{}

func (NopMetrics) OnSubmit(string)          {}
func (NopMetrics) OnExecute(string)         {}
func (NopMetrics) OnFault(string)           {}
func (NopMetrics) OnPromote(string, string) {}
func (NopMetrics) OnDispatch(string, int)   {}
