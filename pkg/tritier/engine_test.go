package tritier_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arikfeldman/tritier/pkg/tritier"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

// countingItem fires a counter and records the wall-clock instant it ran.
type countingItem struct {
	deadline time.Time
	fired    *atomic.Int64
	ranAt    chan time.Time
	fail     bool
}

func (c *countingItem) Deadline() time.Time { return c.deadline }

func (c *countingItem) Execute() error {
	c.fired.Add(1)
	select {
	case c.ranAt <- time.Now():
	default:
	}
	if c.fail {
		return errors.New("boom")
	}
	return nil
}

func newEngine(t *testing.T) *tritier.Engine {
	t.Helper()
	e := tritier.New()
	t.Cleanup(e.Stop)
	return e
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// ─── lifecycle ────────────────────────────────────────────────────────────────

func TestEngine_StartRejectsBadConfig(t *testing.T) {
	e := tritier.New()

	if err := e.Start(0, 500*time.Millisecond, 2*time.Second); !errors.Is(err, tritier.ErrInvalidFrequency) {
		t.Fatalf("want ErrInvalidFrequency, got %v", err)
	}
	if err := e.Start(50*time.Millisecond, 2*time.Second, time.Second); !errors.Is(err, tritier.ErrInvalidThresholds) {
		t.Fatalf("want ErrInvalidThresholds, got %v", err)
	}
	if err := e.Start(50*time.Millisecond, time.Second, time.Second); !errors.Is(err, tritier.ErrInvalidThresholds) {
		t.Fatalf("boundary fastThreshold == slowThreshold: want ErrInvalidThresholds, got %v", err)
	}
}

func TestEngine_StartRejectsDoubleStart(t *testing.T) {
	e := newEngine(t)
	if err := e.Start(50*time.Millisecond, 500*time.Millisecond, 2*time.Second); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := e.Start(50*time.Millisecond, 500*time.Millisecond, 2*time.Second); !errors.Is(err, tritier.ErrAlreadyRunning) {
		t.Fatalf("want ErrAlreadyRunning, got %v", err)
	}
}

func TestEngine_SubmitBeforeStartFails(t *testing.T) {
	e := newEngine(t)
	item := &countingItem{deadline: time.Now().Add(time.Second), fired: new(atomic.Int64), ranAt: make(chan time.Time, 1)}
	if err := e.Submit(item); !errors.Is(err, tritier.ErrNotRunning) {
		t.Fatalf("want ErrNotRunning, got %v", err)
	}
}

func TestEngine_StopIsIdempotent(t *testing.T) {
	e := newEngine(t)
	if err := e.Start(20*time.Millisecond, 200*time.Millisecond, time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.Stop()
	e.Stop() // must not block or panic
	if e.IsRunning() {
		t.Fatal("expected IsRunning() == false after Stop")
	}
}

func TestEngine_StopUnderLoadReturnsPromptly(t *testing.T) {
	e := newEngine(t)
	if err := e.Start(20*time.Millisecond, 200*time.Millisecond, time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var fired atomic.Int64
	for i := 0; i < 1000; i++ {
		item := &countingItem{
			deadline: time.Now().Add(time.Hour),
			fired:    &fired,
			ranAt:    make(chan time.Time, 1),
		}
		if err := e.Submit(item); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	start := time.Now()
	e.Stop()
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Stop took too long under load: %v", elapsed)
	}
	if e.IsRunning() {
		t.Fatal("expected IsRunning() == false after Stop")
	}

	afterStop := fired.Load()
	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != afterStop {
		t.Fatalf("execution happened after Stop returned: before=%d after=%d", afterStop, got)
	}
}

// ─── scenarios (spec.md §8) ───────────────────────────────────────────────────

func TestEngine_SimpleFire(t *testing.T) {
	e := newEngine(t)
	if err := e.Start(50*time.Millisecond, 500*time.Millisecond, 2*time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var fired atomic.Int64
	item := &countingItem{deadline: time.Now().Add(100 * time.Millisecond), fired: &fired, ranAt: make(chan time.Time, 1)}
	if err := e.Submit(item); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if !waitUntil(t, time.Second, func() bool { return fired.Load() == 1 }) {
		t.Fatal("item never fired")
	}
	if stats := e.Statistics(); stats.Fast.Executed != 1 {
		t.Fatalf("fast.itemsExecuted: want 1, got %d", stats.Fast.Executed)
	}
}

func TestEngine_TierPromotion(t *testing.T) {
	e := newEngine(t)
	if err := e.Start(50*time.Millisecond, 500*time.Millisecond, 2*time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var fired atomic.Int64
	deadline := time.Now().Add(1500 * time.Millisecond)
	item := &countingItem{deadline: deadline, fired: &fired, ranAt: make(chan time.Time, 1)}
	if err := e.Submit(item); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if !waitUntil(t, 3*time.Second, func() bool { return fired.Load() == 1 }) {
		t.Fatal("item never fired")
	}
}

func TestEngine_FaultyPayloadIsIsolated(t *testing.T) {
	e := newEngine(t)
	if err := e.Start(20*time.Millisecond, 200*time.Millisecond, time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}

	const n = 100
	var fired atomic.Int64
	for i := 0; i < n; i++ {
		item := &countingItem{
			deadline: time.Now().Add(30 * time.Millisecond),
			fired:    &fired,
			ranAt:    make(chan time.Time, 1),
			fail:     true,
		}
		if err := e.Submit(item); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	if !waitUntil(t, 3*time.Second, func() bool { return fired.Load() == n }) {
		t.Fatalf("not all items executed: got %d, want %d", fired.Load(), n)
	}

	var excs []error
	if !waitUntil(t, time.Second, func() bool {
		records := e.DrainExceptions()
		for _, r := range records {
			excs = append(excs, r.Err)
		}
		return len(excs) >= n
	}) {
		t.Fatalf("expected %d exception records, got %d", n, len(excs))
	}

	if !e.IsRunning() {
		t.Fatal("engine should remain running after faulty payloads")
	}
}

func TestEngine_BulkLoad(t *testing.T) {
	e := newEngine(t)
	if err := e.Start(50*time.Millisecond, 500*time.Millisecond, 2*time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}

	const n = 2000
	var fired atomic.Int64

	for i := 0; i < n; i++ {
		d := time.Now().Add(time.Duration(i%3000) * time.Millisecond)
		item := &countingItem{deadline: d, fired: &fired, ranAt: make(chan time.Time, 1)}
		if err := e.Submit(item); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	if !waitUntil(t, 6*time.Second, func() bool { return fired.Load() == int64(n) }) {
		t.Fatalf("bulk load incomplete: got %d, want %d", fired.Load(), n)
	}
}

func TestEngine_NegativeDeadlineFiresOnNextFastPass(t *testing.T) {
	e := newEngine(t)
	if err := e.Start(20*time.Millisecond, 200*time.Millisecond, time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var fired atomic.Int64
	item := &countingItem{deadline: time.Now().Add(-time.Hour), fired: &fired, ranAt: make(chan time.Time, 1)}
	if err := e.Submit(item); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if !waitUntil(t, 200*time.Millisecond, func() bool { return fired.Load() == 1 }) {
		t.Fatal("past-deadline item did not fire promptly")
	}
}

func TestEngine_NoDoubleExecution(t *testing.T) {
	e := newEngine(t)
	if err := e.Start(20*time.Millisecond, 200*time.Millisecond, time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var fired atomic.Int64
	item := &countingItem{deadline: time.Now().Add(30 * time.Millisecond), fired: &fired, ranAt: make(chan time.Time, 1)}
	if err := e.Submit(item); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if !waitUntil(t, time.Second, func() bool { return fired.Load() >= 1 }) {
		t.Fatal("item never fired")
	}
	time.Sleep(200 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("item executed %d times, want exactly 1", got)
	}
}
