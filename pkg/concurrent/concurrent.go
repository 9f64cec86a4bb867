package concurrent

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/scenery/pkg/sequence"
)

// Concurrent runs action for each element of the iterator on its own
// goroutine, at most limit at a time (no limit when limit <= 0). The context
// passed to action is cancelled on the first error, which is returned.
func Concurrent[T any](ctx context.Context, i *sequence.Iterator[T], limit int, action func(context.Context, T) error) error {
	group, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}
	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}
		if ctx.Err() != nil {
			break
		}
		group.Go(func() error {
			return action(ctx, value)
		})
	}

	return group.Wait()
}

// ParallelMap applies mapFn to each element in parallel, preserving order.
// The workers parameter bounds the number of goroutines.
func ParallelMap[T any, R any](i *sequence.Iterator[T], workers int, mapFn func(T) R) []R {
	in := i.Collect()
	out := make([]R, len(in))
	var wg sync.WaitGroup
	sem := make(chan struct{}, max(workers, 1))

	for idx, val := range in {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer wg.Done()
			out[i] = mapFn(v)
			<-sem
		}(idx, val)
	}
	wg.Wait()
	return out
}
