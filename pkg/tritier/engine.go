package tritier

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arikfeldman/tritier/internal/node"
	"github.com/arikfeldman/tritier/pkg/tritier/container"
)

// Sentinel errors surfaced synchronously by Start and Submit, per spec.md
// §7's "submission errors" category.
var (
	ErrAlreadyRunning    = errors.New("tritier: engine already running")
	ErrNotRunning        = errors.New("tritier: engine is not running")
	ErrInvalidFrequency  = errors.New("tritier: frequency must be at least 1ms")
	ErrInvalidThresholds = errors.New("tritier: fastThreshold must be less than slowThreshold")

	errAnomalousRemaining = errors.New("tritier: slow-tier item's remaining time exceeds slowThreshold")
)

// DefaultGracePeriod is how long Stop waits for the tier workers to exit
// cooperatively. Once it elapses, Stop records a teardown exception and
// returns; workers that have not yet exited are not forcibly stopped.
const DefaultGracePeriod = 20 * time.Second

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithClock overrides the engine's wall-clock source. Tests use this to
// drive synthetic time instead of sleeping through real deadlines.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithMetrics attaches a Metrics hook so every submit/execute/fault/promote
// /dispatch event is observable by the host's own metrics registry.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m == nil {
			m = NopMetrics{}
		}
		e.metrics = m
	}
}

// WithDispatchSize overrides the dispatch primitive's worker pool size.
// size <= 0 scales with GOMAXPROCS (the default).
func WithDispatchSize(size int) Option {
	return func(e *Engine) { e.dispatchSize = size }
}

// WithGracePeriod overrides how long Stop waits for tier workers to exit
// cooperatively before giving up on them.
func WithGracePeriod(d time.Duration) Option {
	return func(e *Engine) { e.gracePeriod = d }
}

// Engine is the tiered deadline scheduler described by spec.md §4.1: it
// owns the three tier instances, routes submissions to the right tier by
// remaining time-to-deadline, and aggregates every asynchronous fault onto
// a single exception sink the host can drain at its own pace.
//
// All methods are safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	frequency     time.Duration
	fastThreshold time.Duration
	slowThreshold time.Duration

	fast  *tier
	slow  *tier
	snail *tier

	sink         *container.Sink[ExceptionRecord]
	clock        Clock
	metrics      Metrics
	dispatchSize int
	gracePeriod  time.Duration

	running bool

	wg sync.WaitGroup
}

// New constructs an Engine. Start must be called before Submit.
func New(opts ...Option) *Engine {
	e := &Engine{
		sink:        container.NewSink[ExceptionRecord](),
		clock:       realClock{},
		metrics:     NopMetrics{},
		gracePeriod: DefaultGracePeriod,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start records configuration, binds each tier to the engine, and launches
// one long-lived worker per tier (spec.md §4.1).
//
// frequency is the Fast tier's cadence and must be at least 1ms.
// fastThreshold must be strictly less than slowThreshold. Start fails if
// the engine is already running or either constraint is violated.
func (e *Engine) Start(frequency, fastThreshold, slowThreshold time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}
	if frequency < time.Millisecond {
		return ErrInvalidFrequency
	}
	if fastThreshold >= slowThreshold {
		return ErrInvalidThresholds
	}

	e.frequency = frequency
	e.fastThreshold = fastThreshold
	e.slowThreshold = slowThreshold

	e.fast = newFastTier(frequency)
	e.slow = newSlowTier(frequency, fastThreshold, slowThreshold)
	e.snail = newSnailTier(frequency, fastThreshold, slowThreshold)

	h := &handle{
		clock:          e.clock,
		fastThreshold:  fastThreshold,
		slowThreshold:  slowThreshold,
		fastInbox:      e.fast.inbox,
		slowInbox:      e.slow.inbox,
		snailInbox:     e.snail.inbox,
		sink:           e.sink,
		dispatch:       newDispatcher(e.dispatchSize),
		metrics:        e.metrics,
		newExceptionID: e.newExceptionID,
	}

	e.wg.Add(3)
	for _, t := range []*tier{e.fast, e.slow, e.snail} {
		t := t
		go func() {
			defer e.wg.Done()
			t.run(h)
		}()
	}

	e.running = true
	return nil
}

// newExceptionID generates an ID for an ExceptionRecord. Falls back to a
// monotone-ish placeholder on the vanishingly unlikely chance ULID entropy
// generation fails, so a transient ID-generation hiccup never drops a fault
// record on the floor.
func (e *Engine) newExceptionID() string {
	id, err := node.NewID()
	if err != nil {
		return fmt.Sprintf("exc-%d", time.Now().UnixNano())
	}
	return id
}

// Stop requests each tier worker exit, then waits up to the configured
// grace period for them to terminate cooperatively before giving up on any
// stragglers (spec.md §4.1, §9: cooperative wantExit in place of the
// source's forcible thread abort). Stop is idempotent: calling it on an
// already-stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.fast.requestExit()
	e.slow.requestExit()
	e.snail.requestExit()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(e.gracePeriod):
		e.sink.Push(ExceptionRecord{
			ID:         e.newExceptionID(),
			Kind:       ExceptionTeardown,
			Tier:       "engine",
			Err:        errors.New("tritier: grace period elapsed before all tier workers exited"),
			OccurredAt: e.clock.Now(),
		})
	}

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Submit classifies item by remaining time-to-deadline against the
// configured thresholds and appends it to the chosen tier's inbox
// (spec.md §4.1). An item whose deadline is already in the past classifies
// as Fast — it fires on the next Fast pass.
//
// Submit returns ErrNotRunning if the engine has not been started (or has
// been stopped). Any other error is impossible by construction, but the
// signature is kept so the decision of where faults go (the exception sink
// vs. a synchronous return) stays an explicit contract rather than an
// implementation detail that could silently change.
func (e *Engine) Submit(item WorkItem) error {
	e.mu.Lock()
	running := e.running
	fastThreshold, slowThreshold := e.fastThreshold, e.slowThreshold
	fast, slow, snail := e.fast, e.slow, e.snail
	e.mu.Unlock()

	if !running {
		return ErrNotRunning
	}

	remaining := item.Deadline().Sub(e.clock.Now())
	switch {
	case remaining <= fastThreshold:
		fast.inbox.Push(item)
		e.metrics.OnSubmit("fast")
	case remaining <= slowThreshold:
		slow.inbox.Push(item)
		e.metrics.OnSubmit("slow")
	default:
		snail.inbox.Push(item)
		e.metrics.OnSubmit("snail")
	}
	return nil
}

// DrainExceptions returns and clears every ExceptionRecord accumulated
// since the last call.
func (e *Engine) DrainExceptions() []ExceptionRecord {
	return e.sink.DrainAll()
}

// IsRunning reports whether the tier loops are live.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}
