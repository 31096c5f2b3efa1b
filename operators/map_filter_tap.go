// Package operators implements the single-source pass-through operators,
// each built atop pullstream.Lift's operator execution contract unless it
// needs its own timer, latch, or parallel reader.
package operators

import (
	"context"

	pullstream "github.com/joeycumines/go-pullstream"
)

// Map transforms every chunk with f.
func Map[T, R any](upstream pullstream.Source[T], f func(T) R, strategy ...pullstream.Strategy) pullstream.Source[R] {
	return pullstream.Lift[T, R](upstream, func(v T) (R, bool, error) {
		return f(v), false, nil
	}, strategy...)
}

// Filter keeps only chunks for which pred returns true.
func Filter[T any](upstream pullstream.Source[T], pred func(T) bool, strategy ...pullstream.Strategy) pullstream.Source[T] {
	return pullstream.Lift[T, T](upstream, func(v T) (T, bool, error) {
		return v, !pred(v), nil
	}, strategy...)
}

// Tap invokes f for its side effect on every chunk, passing it through
// unchanged.
func Tap[T any](upstream pullstream.Source[T], f func(T), strategy ...pullstream.Strategy) pullstream.Source[T] {
	return pullstream.Lift[T, T](upstream, func(v T) (T, bool, error) {
		f(v)
		return v, false, nil
	}, strategy...)
}

// Scan emits the running accumulation f(seed, v1), f(f(seed,v1), v2), …; the
// seed itself is not emitted.
func Scan[T, R any](upstream pullstream.Source[T], seed R, f func(acc R, v T) R, strategy ...pullstream.Strategy) pullstream.Source[R] {
	acc := seed
	return pullstream.Lift[T, R](upstream, func(v T) (R, bool, error) {
		acc = f(acc, v)
		return acc, false, nil
	}, strategy...)
}

// IgnoreElements drops every chunk, passing through only the terminal event.
func IgnoreElements[T any](upstream pullstream.Source[T], strategy ...pullstream.Strategy) pullstream.Source[T] {
	return pullstream.Lift[T, T](upstream, func(v T) (T, bool, error) {
		var zero T
		return zero, true, nil
	}, strategy...)
}

// DefaultIfEmpty emits def if upstream closes without having emitted any
// chunk; otherwise it passes every chunk through unchanged.
func DefaultIfEmpty[T any](upstream pullstream.Source[T], def T, strategy ...pullstream.Strategy) pullstream.Source[T] {
	return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
		reader, err := upstream.NewReader()
		if err != nil {
			ctrl.Error(err)
			return
		}
		defer reader.Release()

		var sawAny bool
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
				break
			}
			sawAny = true
			if err := ctrl.Enqueue(ctx, v); err != nil {
				return
			}
		}
		if !sawAny {
			if err := ctrl.Enqueue(ctx, def); err != nil {
				return
			}
		}
		ctrl.Close()
	}, strategy...)
}
