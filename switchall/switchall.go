// Package switchall implements the latest-wins flattening operator: each new
// outer chunk cancels whatever inner is currently active and switches to
// reading the new one.
package switchall

import (
	"context"
	"sync"

	pullstream "github.com/joeycumines/go-pullstream"
	"github.com/joeycumines/go-pullstream/internal/rendezvous"
)

type result[R any] struct {
	v        R
	terminal bool
}

type switchState struct {
	mu     sync.Mutex
	gen    int
	cancel context.CancelFunc
}

// isCurrent reports whether gen is still the active inner's generation.
func (s *switchState) isCurrent(gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// advance revokes the previous inner (cancelling its context, if any) and
// returns the generation number assigned to the new inner.
func (s *switchState) advance(cancel context.CancelFunc) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.cancel = cancel
	return s.gen
}

// SwitchAll flattens outer into a single Source, at any time reading from at
// most the most-recently-coerced inner; an older inner's remaining chunks are
// discarded once a newer one arrives.
func SwitchAll[T, R any](outer pullstream.Source[T], coerce pullstream.CoerceFunc[T, R], strategy ...pullstream.Strategy) pullstream.Source[R] {
	return pullstream.New[R](func(ctx context.Context, ctrl *pullstream.Controller[R]) {
		queue := rendezvous.New[result[R]]()
		state := &switchState{}
		outerCtx, cancelOuter := context.WithCancelCause(ctx)
		defer cancelOuter(nil)

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

				inner, cerr := coerce(v)
				if cerr != nil {
					if cerr == pullstream.ErrSkip {
						continue
					}
					latchErr(cerr)
					return
				}

				reader, rerr2 := inner.NewReader()
				if rerr2 != nil {
					latchErr(rerr2)
					return
				}

				innerCtx, cancel := context.WithCancel(outerCtx)
				gen := state.advance(cancel)

				reading.Add(1)
				go runInner(innerCtx, gen, state, reader, queue, latchErr, &reading)
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
	gen int,
	state *switchState,
	reader *pullstream.Reader[R],
	queue *rendezvous.Queue[result[R]],
	latchErr func(error),
	reading *sync.WaitGroup,
) {
	defer reading.Done()
	defer reader.Release()

	for {
		v, ok, rerr := reader.Read(ctx)
		if !state.isCurrent(gen) {
			// revoked mid-read: the value, if any, is discarded.
			return
		}
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
