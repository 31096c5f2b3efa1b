// Package concatall implements the sequential flattening operator: each
// outer chunk is coerced to an inner Source and drained to completion, in
// arrival order, before the next inner starts.
package concatall

import (
	"context"

	pullstream "github.com/joeycumines/go-pullstream"
)

// ConcatAll flattens outer, a Source of stream-like chunks, into a single
// Source by coercing each chunk with coerce and draining the resulting inner
// Sources one at a time, in order.
func ConcatAll[T, R any](outer pullstream.Source[T], coerce pullstream.CoerceFunc[T, R], strategy ...pullstream.Strategy) pullstream.Source[R] {
	return pullstream.New[R](func(ctx context.Context, ctrl *pullstream.Controller[R]) {
		outerReader, err := outer.NewReader()
		if err != nil {
			ctrl.Error(err)
			return
		}
		defer outerReader.Release()

		for {
			v, ok, rerr := outerReader.Read(ctx)
			if rerr != nil {
				if pullstream.IsCanceled(rerr) {
					return
				}
				ctrl.Error(rerr)
				return
			}
			if !ok {
				ctrl.Close()
				return
			}

			inner, cerr := coerce(v)
			if cerr != nil {
				if cerr == pullstream.ErrSkip {
					continue
				}
				ctrl.Error(cerr)
				outerReader.Cancel(cerr)
				return
			}

			if !drainInner(ctx, ctrl, outerReader, inner) {
				return
			}
		}
	}, strategy...)
}

// drainInner reads inner to completion, forwarding every chunk to ctrl. It
// returns false once the outer loop must stop: an inner error (which also
// cancels the outer reader) or a downstream cancellation observed via a
// failed Enqueue.
func drainInner[T, R any](ctx context.Context, ctrl *pullstream.Controller[R], outerReader *pullstream.Reader[T], inner pullstream.Source[R]) bool {
	innerReader, err := inner.NewReader()
	if err != nil {
		ctrl.Error(err)
		return false
	}
	defer innerReader.Release()

	for {
		v, ok, rerr := innerReader.Read(ctx)
		if rerr != nil {
			if pullstream.IsCanceled(rerr) {
				return false
			}
			ctrl.Error(rerr)
			outerReader.Cancel(rerr)
			return false
		}
		if !ok {
			return true
		}
		if err := ctrl.Enqueue(ctx, v); err != nil {
			return false
		}
	}
}
