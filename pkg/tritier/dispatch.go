package tritier

import (
	"fmt"
	"runtime"
	"sync"
)

// dispatcher fans a batch out across a bounded pool of goroutines. Each
// item's action is independent; the dispatcher gives no ordering guarantee
// across items and no synchronization between them beyond what the
// containers already provide.
//
// The semaphore-channel pattern is the same one the task-processing worker
// pool uses to bound concurrency over a set of leased jobs, adapted here
// from a polling lease loop into a one-shot fan-out over a fixed batch: fill
// the semaphore, wait for the batch to drain, return.
type dispatcher struct {
	sem chan struct{}
}

// newDispatcher returns a dispatcher whose concurrency is bounded by size.
// size <= 0 scales with the number of available cores, so the pool grows
// with the machine the way spec.md §4.6 requires ("must scale with
// available cores").
func newDispatcher(size int) *dispatcher {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0) * 4
		if size < 1 {
			size = 1
		}
	}
	return &dispatcher{sem: make(chan struct{}, size)}
}

// run invokes action once per item in batch, in parallel, and blocks until
// every invocation has returned. A panic inside action is recovered and
// turned into a normal error so one misbehaving item can never take down
// the tier loop or its peers in the same batch — spec.md §4.6's exception
// isolation requirement, extended to cover a Go panic as well as a
// returned error.
func (d *dispatcher) run(batch []WorkItem, action func(WorkItem) error) []dispatchResult {
	results := make([]dispatchResult, len(batch))

	var wg sync.WaitGroup
	wg.Add(len(batch))
	for i, item := range batch {
		d.sem <- struct{}{}
		go func(i int, item WorkItem) {
			defer func() {
				<-d.sem
				wg.Done()
			}()
			defer func() {
				if r := recover(); r != nil {
					results[i] = dispatchResult{item: item, err: panicError{r}}
				}
			}()
			if err := action(item); err != nil {
				results[i] = dispatchResult{item: item, err: err}
			} else {
				results[i] = dispatchResult{item: item}
			}
		}(i, item)
	}
	wg.Wait()

	return results
}

type dispatchResult struct {
	item WorkItem
	err  error
}

// panicError wraps a recovered panic value as an error so it can travel
// through the same exception-sink path as an ordinary Execute error.
type panicError struct {
	v any
}

func (p panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.v)
}
