// Package creators implements the source-producing entry points (from, of,
// range, timer, …) that sit outside the core operator set but are required
// for a usable pipeline.
package creators

import (
	"context"
	"errors"
	"time"

	pullstream "github.com/joeycumines/go-pullstream"
)

// Of returns a Source that emits each of vs, in order, then closes.
func Of[T any](vs ...T) pullstream.Source[T] {
	return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
		for _, v := range vs {
			if err := ctrl.Enqueue(ctx, v); err != nil {
				return
			}
		}
		ctrl.Close()
	})
}

// Empty returns a Source that closes immediately without emitting anything.
func Empty[T any]() pullstream.Source[T] {
	return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
		ctrl.Close()
	})
}

// Range returns a Source of count consecutive ints starting at start. count
// must be >= 0; count == 0 closes immediately.
func Range(start, count int) pullstream.Source[int] {
	if count < 0 {
		return throwErrorSource[int](errors.New("pullstream: creators: Count must be non-negative"))
	}
	return pullstream.New[int](func(ctx context.Context, ctrl *pullstream.Controller[int]) {
		for i := 0; i < count; i++ {
			if err := ctrl.Enqueue(ctx, start+i); err != nil {
				return
			}
		}
		ctrl.Close()
	})
}

// Timer emits 0 after due elapses; if interval is given (len(interval) > 0)
// and positive, it then emits 1, 2, … every interval until cancelled. due
// must be >= 0; a supplied interval must be > 0.
func Timer(due time.Duration, interval ...time.Duration) pullstream.Source[int] {
	if due < 0 {
		return throwErrorSource[int](errors.New("pullstream: creators: Due time must be non-negative"))
	}
	var repeat time.Duration
	if len(interval) > 0 {
		repeat = interval[0]
		if repeat <= 0 {
			return throwErrorSource[int](errors.New("pullstream: creators: Interval duration must be positive"))
		}
	}

	return pullstream.New[int](func(ctx context.Context, ctrl *pullstream.Controller[int]) {
		timer := time.NewTimer(due)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
		if err := ctrl.Enqueue(ctx, 0); err != nil {
			return
		}
		if repeat <= 0 {
			ctrl.Close()
			return
		}

		ticker := time.NewTicker(repeat)
		defer ticker.Stop()
		for n := 1; ; n++ {
			select {
			case <-ticker.C:
				if err := ctrl.Enqueue(ctx, n); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})
}

// Interval is Timer(d, d): the first emission and every subsequent one are d
// apart. d must be > 0; 0 is rejected, unlike Timer's due.
func Interval(d time.Duration) pullstream.Source[int] {
	if d <= 0 {
		return throwErrorSource[int](errors.New("pullstream: creators: Interval duration must be positive"))
	}
	return Timer(d, d)
}

// ThrowError returns a Source that errors immediately with err, without
// emitting anything.
func ThrowError[T any](err error) pullstream.Source[T] {
	return throwErrorSource[T](err)
}

func throwErrorSource[T any](err error) pullstream.Source[T] {
	return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
		ctrl.Error(err)
	})
}

// Defer builds a fresh Source, via factory, on every NewReader call — the
// Go equivalent of a cold, lazily-constructed observable. factory is called
// once per NewReader, not once per Defer call.
func Defer[T any](factory func() (pullstream.Source[T], error)) pullstream.Source[T] {
	return &deferredSource[T]{factory: factory}
}

type deferredSource[T any] struct {
	factory func() (pullstream.Source[T], error)
}

func (d *deferredSource[T]) NewReader() (*pullstream.Reader[T], error) {
	inner, err := d.factory()
	if err != nil {
		return ThrowError[T](err).NewReader()
	}
	return inner.NewReader()
}
