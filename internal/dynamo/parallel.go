package dynamo

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RunParallel calls fn for every index in [0, n) on at most GOMAXPROCS
// goroutines. The first error cancels the context passed to the others.
func RunParallel(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}
