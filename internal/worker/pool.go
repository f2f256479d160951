package worker

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// MapGenes runs fn(i) for every gene index in [0, n) across at most workers
// goroutines and returns after all complete (the synchronization barrier).
// fn implementations must be pure over per-gene data and write results only
// to their own index; indices are claimed from a shared atomic counter, so no
// ordering among genes is guaranteed. A cancelled context abandons unstarted
// genes and returns the context error; partial results are discarded by the
// caller.
func MapGenes(ctx context.Context, n, workers int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	if workers < 1 || workers > n {
		workers = n
	}

	g, ctx := errgroup.WithContext(ctx)
	var next atomic.Int64
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				i := int(next.Add(1)) - 1
				if i >= n {
					return nil
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(i); err != nil {
					return err
				}
			}
		})
	}
	return g.Wait()
}
