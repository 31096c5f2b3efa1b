// Package mergeall implements a bounded-concurrency flattening operator: up
// to k inner sources, coerced from outer chunks, are read concurrently and
// their chunks interleaved onto a single downstream.
package mergeall

import (
	"context"
	"errors"
	"math"
	"sync"

	pullstream "github.com/joeycumines/go-pullstream"
	"github.com/joeycumines/go-pullstream/internal/gate"
	"github.com/joeycumines/go-pullstream/internal/rendezvous"
	"github.com/joeycumines/go-pullstream/telemetry"
)

// Unbounded requests unlimited inner concurrency, translated internally into
// a very large Gate rather than a special-cased unbounded path. It is a
// sentinel distinct from zero: WithConcurrency(Unbounded) and omitting
// WithConcurrency entirely both mean "no limit," but WithConcurrency(0) or a
// negative value is a caller error, not a synonym for Unbounded.
const Unbounded = -1

type result[R any] struct {
	v        R
	terminal bool
}

// MergeAll flattens outer into a single Source, draining at most the
// configured WithConcurrency inner sources (coerced from each outer chunk
// via coerce) at a time. With no WithConcurrency option, concurrency is
// Unbounded. An explicit WithConcurrency(0) or a negative value errors
// immediately instead of silently running unbounded.
func MergeAll[T, R any](outer pullstream.Source[T], coerce pullstream.CoerceFunc[T, R], opts ...Option) pullstream.Source[R] {
	opt := resolve(opts)
	concurrency := opt.concurrency
	switch concurrency {
	case unset, Unbounded:
		concurrency = math.MaxInt32
	default:
		if concurrency <= 0 {
			return pullstream.New[R](func(ctx context.Context, ctrl *pullstream.Controller[R]) {
				ctrl.Error(errors.New("pullstream: mergeall: Concurrency limit must be greater than zero"))
			}, opt.strategy)
		}
	}

	return pullstream.New[R](func(ctx context.Context, ctrl *pullstream.Controller[R]) {
		g := gate.New(concurrency)
		queue := rendezvous.New[result[R]]()
		innerCtx, cancelInner := context.WithCancelCause(ctx)
		defer cancelInner(nil)

		var mu sync.Mutex
		var firstErr error
		var reading sync.WaitGroup

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
			cancelInner(err)
		}

		go runOuter(ctx, innerCtx, outer, coerce, g, queue, &reading, latchErr, opt.observer)

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
	}, opt.strategy)
}

func runOuter[T, R any](
	downstreamCtx context.Context,
	ctx context.Context,
	outer pullstream.Source[T],
	coerce pullstream.CoerceFunc[T, R],
	g *gate.Gate,
	queue *rendezvous.Queue[result[R]],
	reading *sync.WaitGroup,
	latchErr func(error),
	observer telemetry.Observer,
) {
	defer func() {
		reading.Wait()
		// ctx is already canceled once an error is latched, so the terminal
		// marker goes out on the downstream context instead.
		_ = queue.Push(downstreamCtx, result[R]{terminal: true})
	}()

	outerReader, err := outer.NewReader()
	if err != nil {
		latchErr(err)
		return
	}
	defer outerReader.Release()

	for {
		if err := g.Acquire(ctx); err != nil {
			return
		}

		v, ok, rerr := outerReader.Read(ctx)
		if rerr != nil {
			g.Release()
			if !pullstream.IsCanceled(rerr) {
				latchErr(rerr)
			}
			return
		}
		if !ok {
			g.Release()
			return
		}

		inner, cerr := coerce(v)
		if cerr != nil {
			g.Release()
			if cerr == pullstream.ErrSkip {
				continue
			}
			latchErr(cerr)
			return
		}

		reading.Add(1)
		go runInner(ctx, inner, queue, g, reading, latchErr, observer)
	}
}

func runInner[R any](
	ctx context.Context,
	inner pullstream.Source[R],
	queue *rendezvous.Queue[result[R]],
	g *gate.Gate,
	reading *sync.WaitGroup,
	latchErr func(error),
	observer telemetry.Observer,
) {
	if observer != nil {
		observer.ActiveInner("mergeall", 1)
		defer observer.ActiveInner("mergeall", -1)
	}
	defer reading.Done()
	defer g.Release()

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
