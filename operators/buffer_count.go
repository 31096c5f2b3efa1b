package operators

import (
	"context"
	"errors"

	pullstream "github.com/joeycumines/go-pullstream"
)

// Buffer batches upstream chunks into fixed-size []T slices, emitting a
// final partial batch on upstream close. n must be > 0. Grounded on
// microbatch.Batcher's MaxSize-triggered flush policy, simplified to the
// count-only trigger this operator specifies (no time-based flush — that is
// debounceTime/throttleTime's concern, not Buffer's).
func Buffer[T any](upstream pullstream.Source[T], n int, strategy ...pullstream.Strategy) pullstream.Source[[]T] {
	if n <= 0 {
		return pullstream.New[[]T](func(ctx context.Context, ctrl *pullstream.Controller[[]T]) {
			ctrl.Error(errors.New("pullstream: operators: Buffer count must be greater than 0"))
		}, strategy...)
	}

	return pullstream.New[[]T](func(ctx context.Context, ctrl *pullstream.Controller[[]T]) {
		reader, err := upstream.NewReader()
		if err != nil {
			ctrl.Error(err)
			return
		}
		defer reader.Release()

		batch := make([]T, 0, n)
		for {
			v, ok, rerr := reader.Read(ctx)
			if rerr != nil {
				if pullstream.IsCanceled(rerr) {
					return
				}
				ctrl.Error(rerr)
				return
			}
			if !ok {
				if len(batch) > 0 {
					if err := ctrl.Enqueue(ctx, batch); err != nil {
						return
					}
				}
				ctrl.Close()
				return
			}

			batch = append(batch, v)
			if len(batch) == n {
				if err := ctrl.Enqueue(ctx, batch); err != nil {
					return
				}
				batch = make([]T, 0, n)
			}
		}
	}, strategy...)
}

// Count emits exactly one chunk, the number of upstream chunks, once
// upstream closes.
func Count[T any](upstream pullstream.Source[T], strategy ...pullstream.Strategy) pullstream.Source[int] {
	return pullstream.New[int](func(ctx context.Context, ctrl *pullstream.Controller[int]) {
		reader, err := upstream.NewReader()
		if err != nil {
			ctrl.Error(err)
			return
		}
		defer reader.Release()

		var n int
		for {
			_, ok, rerr := reader.Read(ctx)
			if rerr != nil {
				if pullstream.IsCanceled(rerr) {
					return
				}
				ctrl.Error(rerr)
				return
			}
			if !ok {
				break
			}
			n++
		}
		if err := ctrl.Enqueue(ctx, n); err != nil {
			return
		}
		ctrl.Close()
	}, strategy...)
}
