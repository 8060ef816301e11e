package search

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// RunLimited calls worker for every item with at most limit calls in flight
// and returns the results in input order. A slot whose worker fails, panics,
// or is never dispatched because ctx ended receives fallback; the remaining
// items keep running either way.
func RunLimited[T, R any](ctx context.Context, items []T, limit int, fallback R, worker func(context.Context, T) (R, error)) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}
	if limit <= 0 {
		limit = 1
	}

	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup
	for i, item := range items {
		// Acquire blocks until a running worker releases its slot, so the
		// next item starts as soon as any earlier one finishes.
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = fallback
			continue
		}
		wg.Add(1)
		go func(index int, item T) {
			defer wg.Done()
			defer sem.Release(1)
			results[index] = runWorker(ctx, item, fallback, worker)
		}(i, item)
	}
	wg.Wait()
	return results
}

func runWorker[T, R any](ctx context.Context, item T, fallback R, worker func(context.Context, T) (R, error)) (result R) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = fallback
		}
	}()
	value, err := worker(ctx, item)
	if err != nil {
		return fallback
	}
	return value
}
