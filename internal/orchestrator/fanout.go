package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// FanOut runs fn for every item concurrently and waits for all of them.
// Results are positional: results[i] belongs to items[i] whatever order the
// calls complete in. The first error cancels the context passed to the
// remaining calls and is returned after every call has finished.
func FanOut[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)

	for i, item := range items {
		g.Go(func() error {
			r, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
