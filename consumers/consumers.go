// Package consumers implements array/promise/string consumers: terminal
// operations that drain a Source to completion and hand back a plain Go
// value (or stream callbacks to a subscriber), rather than another Source.
package consumers

import (
	"context"

	pullstream "github.com/joeycumines/go-pullstream"
)

// ToArray drains source and returns every chunk it emitted, in order. A
// terminal error is returned verbatim; cancellation via ctx is returned as
// the context's error.
func ToArray[T any](ctx context.Context, source pullstream.Source[T]) ([]T, error) {
	reader, err := source.NewReader()
	if err != nil {
		return nil, err
	}
	defer reader.Release()

	var out []T
	for {
		v, ok, rerr := reader.Read(ctx)
		if rerr != nil {
			return out, rerr
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// errEmpty is returned by ToLast when source closes without ever emitting a
// chunk; callers detect it with ErrEmpty.
var errEmpty = emptyError{}

type emptyError struct{}

func (emptyError) Error() string { return "pullstream: consumers: source completed without emitting a value" }

// ErrEmpty reports whether err is the "no value emitted" sentinel ToLast
// returns for a source that closed empty.
func ErrEmpty(err error) bool {
	_, ok := err.(emptyError)
	return ok
}

// ToLast drains source and returns its final emitted chunk: "a promise of
// the last value", rendered as a blocking call rather than a promise object
// since that's the idiomatic Go shape for a one-shot async result.
func ToLast[T any](ctx context.Context, source pullstream.Source[T]) (T, error) {
	reader, err := source.NewReader()
	if err != nil {
		var zero T
		return zero, err
	}
	defer reader.Release()

	var have bool
	var last T
	for {
		v, ok, rerr := reader.Read(ctx)
		if rerr != nil {
			var zero T
			return zero, rerr
		}
		if !ok {
			if !have {
				var zero T
				return zero, errEmpty
			}
			return last, nil
		}
		have = true
		last = v
	}
}

// ToString drains a Source[string], concatenating every chunk.
func ToString(ctx context.Context, source pullstream.Source[string]) (string, error) {
	reader, err := source.NewReader()
	if err != nil {
		return "", err
	}
	defer reader.Release()

	var sb []byte
	for {
		v, ok, rerr := reader.Read(ctx)
		if rerr != nil {
			return string(sb), rerr
		}
		if !ok {
			return string(sb), nil
		}
		sb = append(sb, v...)
	}
}

// Subscribe drains source on its own goroutine, invoking onNext for every
// chunk and, on termination, onError (if non-nil and the terminal event was
// a failure) or onComplete (if non-nil and upstream closed cleanly).
// Cancellation (via ctx) invokes neither callback, matching the contract
// that cancellation is not an error. Subscribe returns a cancel func that
// stops the drain the same way a ctx cancellation does (neither callback is
// invoked) and releases the reader.
func Subscribe[T any](ctx context.Context, source pullstream.Source[T], onNext func(T), onComplete func(), onError func(error)) (context.CancelFunc, error) {
	reader, err := source.NewReader()
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer reader.Release()
		for {
			v, ok, rerr := reader.Read(subCtx)
			if rerr != nil {
				if !pullstream.IsCanceled(rerr) && onError != nil {
					onError(rerr)
				}
				return
			}
			if !ok {
				if onComplete != nil {
					onComplete()
				}
				return
			}
			if onNext != nil {
				onNext(v)
			}
		}
	}()

	return cancel, nil
}
