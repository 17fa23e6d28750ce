package parallel

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"
)

type result[D any] struct {
	d D
	e error
}

// Times calls fn n times with at most limit calls running at once and yields
// the results in the order of completion. A limit < 1 means no limit.
// Stopping the iteration or cancelling ctx cancels the context passed to the
// calls still running; Times returns only after all of them have returned.
//
//	for code, err := range parallel.Times(ctx, 4, 2, watchOne) {}
func Times[D any](ctx context.Context, n, limit int, fn func(context.Context, int) (D, error)) iter.Seq2[D, error] {
	return func(yield func(D, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var g errgroup.Group
		if limit > 0 {
			g.SetLimit(limit)
		}
		results := make(chan result[D])

		go func() {
			defer close(results)
			for i := range n {
				if ctx.Err() != nil {
					break
				}
				g.Go(func() error {
					d, err := fn(ctx, i)
					select {
					case results <- result[D]{d: d, e: err}:
					case <-ctx.Done():
					}
					return nil
				})
			}
			_ = g.Wait()
		}()

		defer func() {
			cancel()
			for range results {
			}
		}()
		for r := range results {
			if !yield(r.d, r.e) {
				return
			}
		}
	}
}
