package creators

import (
	"context"

	pullstream "github.com/joeycumines/go-pullstream"
)

// FromSlice returns a Source that emits each element of vs, then closes. It
// is finite, restartable per call (a fresh Of Source is built each time),
// and lazy: nothing runs until NewReader is called.
func FromSlice[T any](vs []T) pullstream.Source[T] {
	return Of(vs...)
}

// FromChan returns a Source draining ch until it closes or ctx is done,
// forwarding every received value downstream. Grounded on
// longpoll.Channel's select-based channel-drain loop, simplified since
// pullstream's own Controller already implements the backpressure and
// batching longpoll.Channel layers on top of a raw channel read.
func FromChan[T any](ch <-chan T) pullstream.Source[T] {
	return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
		for {
			select {
			case v, open := <-ch:
				if !open {
					ctrl.Close()
					return
				}
				if err := ctrl.Enqueue(ctx, v); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})
}

// FromFunc builds a Source from a zero-arg factory of a Source, called fresh
// on every NewReader — the Go equivalent of coercing a factory of
// iterables/async-iterables into a cold Source.
func FromFunc[T any](factory func() pullstream.Source[T]) pullstream.Source[T] {
	return Defer(func() (pullstream.Source[T], error) {
		return factory(), nil
	})
}

// From coerces x into a Source[T], dispatching on its dynamic type: []T, a
// receive-only or bidirectional chan T, an already-built pullstream.Source[T],
// or a zero-arg factory of type func() pullstream.Source[T] or
// func() ([]T, error) — a sum-type dispatch
// over (iterable | async-iterable | factory | stream-like), minus a promise
// case, which has no unparameterized Go equivalent outside a channel.
func From[T any](x any) (pullstream.Source[T], error) {
	switch v := x.(type) {
	case pullstream.Source[T]:
		return v, nil
	case []T:
		return FromSlice(v), nil
	case <-chan T:
		return FromChan[T](v), nil
	case chan T:
		return FromChan[T](v), nil
	case func() pullstream.Source[T]:
		return FromFunc(v), nil
	case func() ([]T, error):
		return Defer(func() (pullstream.Source[T], error) {
			vs, err := v()
			if err != nil {
				return nil, err
			}
			return FromSlice(vs), nil
		}), nil
	default:
		return nil, errUnsupportedFromInput
	}
}

var errUnsupportedFromInput = errFrom("pullstream: creators: from: unsupported input type")

type errFrom string

func (e errFrom) Error() string { return string(e) }
