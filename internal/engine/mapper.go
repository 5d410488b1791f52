package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// ElementFn computes one member of a batch. It must be pure with respect to
// shared state: members of one batched call have no defined relative ordering
// and must not interact.
type ElementFn func(ctx context.Context, idx int) error

// BatchMapper applies one function across a leading batch dimension. The
// contract callers rely on: every index in [0, n) is invoked exactly once,
// and an error from any member fails the whole call.
type BatchMapper interface {
	MapN(ctx context.Context, n int, fn ElementFn) error
}

// ParallelMapper executes batch members on a fixed worker pool. Workers <= 0
// selects a CPU-derived default.
type ParallelMapper struct {
	Workers int
}

// DefaultWorkers derives a worker count from the detected CPU topology,
// falling back to GOMAXPROCS when detection reports nothing usable.
func DefaultWorkers() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

func (m ParallelMapper) MapN(ctx context.Context, n int, fn ElementFn) error {
	if n < 0 {
		return fmt.Errorf("batch size must be >= 0")
	}
	if fn == nil {
		return fmt.Errorf("element function is required")
	}
	if n == 0 {
		return nil
	}

	workers := m.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if workers > n {
		workers = n
	}

	jobs := make(chan int)
	results := make(chan error, n)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					results <- err
					continue
				}
				results <- fn(ctx, idx)
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			return err
		}
	}
	return nil
}

// SequentialMapper runs members one at a time in index order. It exists so
// batched execution can be checked against a reference ordering.
type SequentialMapper struct{}

func (SequentialMapper) MapN(ctx context.Context, n int, fn ElementFn) error {
	if n < 0 {
		return fmt.Errorf("batch size must be >= 0")
	}
	if fn == nil {
		return fmt.Errorf("element function is required")
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			return err
		}
	}
	return nil
}
