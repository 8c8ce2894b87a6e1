package research

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
)

// runParallel evaluates fn for every index in [0, n) on a worker pool and returns
// the results in index order. The first error from fn cancels outstanding work and
// is the error returned, even when cancelled trials report after it.
//
// If workers <= 0 it uses runtime.NumCPU() × 2.
func runParallel[T any](ctx context.Context, n, workers int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	if workers > n {
		workers = n
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		idx int
		val T
		err error
	}

	var (
		failOnce sync.Once
		firstErr error
	)
	fail := func(err error) {
		failOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	workCh := make(chan int, n)
	resultCh := make(chan result, n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				if ctx.Err() != nil {
					resultCh <- result{idx: i, err: ctx.Err()}
					continue
				}
				v, err := fn(ctx, i)
				if err != nil {
					fail(err)
				}
				resultCh <- result{idx: i, val: v, err: err}
			}
		}()
	}

	for i := 0; i < n; i++ {
		workCh <- i
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	out := make([]T, n)
	var cancelled error
	for r := range resultCh {
		if r.err != nil {
			cancelled = r.err
			continue
		}
		out[r.idx] = r.val
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if cancelled != nil {
		return nil, cancelled
	}

	slog.Debug("research: parallel runs complete", "runs", n, "workers", workers)
	return out, nil
}
