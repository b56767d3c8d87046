package domain

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type batchResult[R any] struct {
	Value R
	Err   error
}

// runBatch runs fn for every item with at most workers in flight. Every item
// gets its own result slot; a failing item never cancels its siblings.
func runBatch[T, R any](ctx context.Context, workers int, items []T, fn func(context.Context, T) (R, error)) []batchResult[R] {
	results := make([]batchResult[R], len(items))
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, item := range items {
		g.Go(func() error {
			value, err := fn(ctx, item)
			results[i] = batchResult[R]{Value: value, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
