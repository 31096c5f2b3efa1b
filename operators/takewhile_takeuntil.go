package operators

import (
	"context"
	"errors"

	pullstream "github.com/joeycumines/go-pullstream"
)

// TakeWhile emits chunks while pred holds, closing and cancelling upstream
// at the first chunk for which it doesn't.
func TakeWhile[T any](upstream pullstream.Source[T], pred func(T) bool, strategy ...pullstream.Strategy) pullstream.Source[T] {
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
			if !pred(v) {
				ctrl.Close()
				reader.Cancel(nil)
				return
			}
			if err := ctrl.Enqueue(ctx, v); err != nil {
				return
			}
		}
	}, strategy...)
}

var errNotified = errors.New("pullstream: operators: notifier fired")

// TakeUntil emits upstream's chunks until notifier produces its first chunk
// or end, at which point the output closes and both readers are cancelled.
// Errors from notifier are silently ignored: any of its terminal events
// means "stop", not just a clean one.
func TakeUntil[T, N any](upstream pullstream.Source[T], notifier pullstream.Source[N], strategy ...pullstream.Strategy) pullstream.Source[T] {
	return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
		reader, err := upstream.NewReader()
		if err != nil {
			ctrl.Error(err)
			return
		}
		defer reader.Release()

		readCtx, cancelRead := context.WithCancelCause(ctx)
		defer cancelRead(nil)

		go func() {
			notifyReader, err := notifier.NewReader()
			if err != nil {
				return
			}
			defer notifyReader.Release()
			_, _, _ = notifyReader.Read(readCtx) // first chunk, end, or error: all signal "stop"
			cancelRead(errNotified)
		}()

		for {
			v, ok, rerr := reader.Read(readCtx)
			if rerr != nil {
				if errors.Is(context.Cause(readCtx), errNotified) {
					ctrl.Close()
					reader.Cancel(nil)
					return
				}
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
	}, strategy...)
}
