// Package exhaustall implements a drop-while-busy flattening operator: outer
// chunks arriving while an inner is still draining are silently discarded;
// only once idle does the next outer chunk start a new inner.
package exhaustall

import (
	"context"
	"sync"
	"sync/atomic"

	pullstream "github.com/joeycumines/go-pullstream"
	"github.com/joeycumines/go-pullstream/internal/rendezvous"
)

type result[R any] struct {
	v        R
	terminal bool
}

// ExhaustAll flattens outer into a single Source. While an inner coerced
// from a previous outer chunk is still draining, subsequent outer chunks are
// read (so outer always makes progress) but discarded.
func ExhaustAll[T, R any](outer pullstream.Source[T], coerce pullstream.CoerceFunc[T, R], strategy ...pullstream.Strategy) pullstream.Source[R] {
	return pullstream.New[R](func(ctx context.Context, ctrl *pullstream.Controller[R]) {
		queue := rendezvous.New[result[R]]()
		outerCtx, cancelOuter := context.WithCancelCause(ctx)
		defer cancelOuter(nil)

		var mu sync.Mutex
		var firstErr error
		var reading sync.WaitGroup
		var busy int32

		latchErr := func(err error) {
			mu.Lock()
			first := firstErr == nil
			if first {
				firstErr = err
			}
			mu.Unlock()
			if first {
				pullstream.GetLogger().Log(pullstream.LevelError, "latched first terminal error", "error", err)
			}
			cancelOuter(err)
		}

		go func() {
			defer func() {
				reading.Wait()
				// outerCtx is already canceled once an error is latched, so
				// the terminal marker goes out on the downstream context.
				_ = queue.Push(ctx, result[R]{terminal: true})
			}()

			outerReader, err := outer.NewReader()
			if err != nil {
				latchErr(err)
				return
			}
			defer outerReader.Release()

			for {
				v, ok, rerr := outerReader.Read(outerCtx)
				if rerr != nil {
					if !pullstream.IsCanceled(rerr) {
						latchErr(rerr)
					}
					return
				}
				if !ok {
					return
				}

				if !atomic.CompareAndSwapInt32(&busy, 0, 1) {
					continue // an inner is still draining: discard
				}

				inner, cerr := coerce(v)
				if cerr != nil {
					atomic.StoreInt32(&busy, 0)
					if cerr == pullstream.ErrSkip {
						continue
					}
					latchErr(cerr)
					return
				}

				reading.Add(1)
				go runInner(outerCtx, inner, queue, &busy, &reading, latchErr)
			}
		}()

		for {
			r, err := queue.Pull(ctx)
			if err != nil {
				return
			}
			if r.terminal {
				mu.Lock()
				ferr := firstErr
				mu.Unlock()
				if ferr != nil {
					ctrl.Error(ferr)
				} else {
					ctrl.Close()
				}
				return
			}
			if err := ctrl.Enqueue(ctx, r.v); err != nil {
				return
			}
		}
	}, strategy...)
}

func runInner[R any](
	ctx context.Context,
	inner pullstream.Source[R],
	queue *rendezvous.Queue[result[R]],
	busy *int32,
	reading *sync.WaitGroup,
	latchErr func(error),
) {
	defer reading.Done()
	defer atomic.StoreInt32(busy, 0)

	reader, err := inner.NewReader()
	if err != nil {
		latchErr(err)
		return
	}
	defer reader.Release()

	for {
		v, ok, rerr := reader.Read(ctx)
		if rerr != nil {
			if !pullstream.IsCanceled(rerr) {
				latchErr(rerr)
			}
			return
		}
		if !ok {
			return
		}
		if err := queue.Push(ctx, result[R]{v: v}); err != nil {
			return
		}
	}
}
