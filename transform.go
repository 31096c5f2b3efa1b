package pullstream

import (
	"context"
	"errors"
	"fmt"
)

// Transform is applied once per upstream chunk by Lift. Returning skip=true
// drops the chunk without emitting it downstream. A non-nil error
// terminates the operator.
type Transform[T, R any] func(v T) (out R, skip bool, err error)

// Operator is the plain Source-to-Source shape that Pipe composes: a
// function from a Source to a Source, optionally overriding the default
// queuing Strategy. Operators that take further arguments (Map's function,
// a flattening operator's CoerceFunc, tee's branch count) do not match it
// directly and are called as ordinary functions.
type Operator[T, R any] func(upstream Source[T], strategy ...Strategy) Source[R]

// Pipe threads src through ops in order, each consuming the previous stage's
// output. Since every intermediate Source shares type T, only same-typed
// operators (Operator[T, T]) compose this way; chains that change type
// (e.g. a Map to R) are built by calling the operator directly instead.
func Pipe[T any](src Source[T], ops ...Operator[T, T]) Source[T] {
	out := src
	for _, op := range ops {
		out = op(out)
	}
	return out
}

// Lift builds a single-source operator from a per-chunk Transform,
// implementing the operator execution contract: it honors downstream
// backpressure (Enqueue blocks until desiredSize > 0), closes exactly once
// on upstream end, errors exactly once on upstream or transform failure
// (canceling upstream with the same reason), and treats downstream
// cancellation as terminal with no error callback.
//
// Every pass-through operator in package operators is built on Lift.
func Lift[T, R any](upstream Source[T], transform Transform[T, R], strategy ...Strategy) Source[R] {
	return New[R](func(ctx context.Context, ctrl *Controller[R]) {
		reader, err := upstream.NewReader()
		if err != nil {
			ctrl.Error(err)
			return
		}
		defer reader.Release()

		for {
			v, ok, rerr := reader.Read(ctx)
			if rerr != nil {
				if IsCanceled(rerr) {
					return
				}
				ctrl.Error(rerr)
				reader.Cancel(rerr)
				return
			}
			if !ok {
				ctrl.Close()
				return
			}

			out, skip, terr := safeTransform(transform, v)
			if terr != nil {
				ctrl.Error(terr)
				reader.Cancel(terr)
				return
			}
			if skip {
				continue
			}
			if err := ctrl.Enqueue(ctx, out); err != nil {
				return
			}
		}
	}, strategy...)
}

func safeTransform[T, R any](t Transform[T, R], v T) (out R, skip bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pullstream: panic in transform: %v", p)
		}
	}()
	return t(v)
}

// CoerceFunc converts an upstream chunk, whatever stream-like shape it has
// (a channel, an iterable, a single value, a Source), into a Source[R].
// Higher-order flattening operators (concatall, mergeall, switchall,
// exhaustall) all accept a CoerceFunc so they can flatten any "inner" shape
// the outer produces, without this package needing to know about the
// specific inner representation (an iterable, a channel, etc).
type CoerceFunc[T, R any] func(v T) (Source[R], error)

// ErrSkip, when returned alongside a nil Source from a CoerceFunc, causes
// the flattening operator to silently drop that outer item without treating
// it as an inner source.
var ErrSkip = errors.New("pullstream: skip")
