package operators

import (
	"context"
	"errors"

	pullstream "github.com/joeycumines/go-pullstream"
)

// Take emits at most n chunks, then closes and cancels upstream. n must be
// >= 0.
func Take[T any](upstream pullstream.Source[T], n int, strategy ...pullstream.Strategy) pullstream.Source[T] {
	if n < 0 {
		return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
			ctrl.Error(errors.New("pullstream: operators: Take count must be non-negative"))
		}, strategy...)
	}

	return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
		reader, err := upstream.NewReader()
		if err != nil {
			ctrl.Error(err)
			return
		}
		defer reader.Release()

		for i := 0; i < n; i++ {
			v, ok, rerr := reader.Read(ctx)
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
			if err := ctrl.Enqueue(ctx, v); err != nil {
				return
			}
		}
		ctrl.Close()
		reader.Cancel(nil)
	}, strategy...)
}

// First emits at most one chunk: the first one, or (if pred is non-nil) the
// first matching pred. It closes and cancels upstream as soon as it has its
// value.
func First[T any](upstream pullstream.Source[T], pred func(T) bool, strategy ...pullstream.Strategy) pullstream.Source[T] {
	if pred == nil {
		pred = func(T) bool { return true }
	}
	return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
		reader, err := upstream.NewReader()
		if err != nil {
			ctrl.Error(err)
			return
		}
		defer reader.Release()

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
				ctrl.Close()
				return
			}
			if pred(v) {
				_ = ctrl.Enqueue(ctx, v)
				ctrl.Close()
				reader.Cancel(nil)
				return
			}
		}
	}, strategy...)
}

// Last emits at most one chunk: the most recent one seen matching pred (or
// every chunk, if pred is nil) by the time upstream closes. Unlike First, it
// must buffer: the matching value is only known once upstream has ended.
func Last[T any](upstream pullstream.Source[T], pred func(T) bool, strategy ...pullstream.Strategy) pullstream.Source[T] {
	if pred == nil {
		pred = func(T) bool { return true }
	}
	return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
		reader, err := upstream.NewReader()
		if err != nil {
			ctrl.Error(err)
			return
		}
		defer reader.Release()

		var have bool
		var last T
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
			if pred(v) {
				have = true
				last = v
			}
		}
		if have {
			_ = ctrl.Enqueue(ctx, last)
		}
		ctrl.Close()
	}, strategy...)
}

// StartWith prepends vs before every chunk from upstream.
func StartWith[T any](upstream pullstream.Source[T], vs ...T) pullstream.Source[T] {
	return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
		for _, v := range vs {
			if err := ctrl.Enqueue(ctx, v); err != nil {
				return
			}
		}

		reader, err := upstream.NewReader()
		if err != nil {
			ctrl.Error(err)
			return
		}
		defer reader.Release()

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
				ctrl.Close()
				return
			}
			if err := ctrl.Enqueue(ctx, v); err != nil {
				return
			}
		}
	})
}
