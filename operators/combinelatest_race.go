package operators

import (
	"context"
	"errors"
	"sync"

	pullstream "github.com/joeycumines/go-pullstream"
	"github.com/joeycumines/go-pullstream/internal/rendezvous"
)

type combineLatestResult struct {
	vs       []any
	terminal bool
}

// CombineLatest emits a tuple (as []any) once every source has emitted at
// least once, then a fresh tuple on every subsequent emission from any
// source, using the latest value from the others. It completes once every
// source has completed.
func CombineLatest(sources ...pullstream.Source[any]) pullstream.Source[[]any] {
	return pullstream.New[[]any](func(ctx context.Context, ctrl *pullstream.Controller[[]any]) {
		n := len(sources)
		queue := rendezvous.New[combineLatestResult]()
		innerCtx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)

		var mu sync.Mutex
		latest := make([]any, n)
		have := make([]bool, n)
		var firstErr error

		latchErr := func(err error) {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			cancel(err)
		}

		var reading sync.WaitGroup
		reading.Add(n)
		for i, s := range sources {
			go func(i int, s pullstream.Source[any]) {
				defer reading.Done()
				r, err := s.NewReader()
				if err != nil {
					latchErr(err)
					return
				}
				defer r.Release()
				for {
					v, ok, rerr := r.Read(innerCtx)
					if rerr != nil {
						if !pullstream.IsCanceled(rerr) {
							latchErr(rerr)
						}
						return
					}
					if !ok {
						return
					}

					mu.Lock()
					latest[i] = v
					have[i] = true
					ready := true
					for _, h := range have {
						if !h {
							ready = false
							break
						}
					}
					var snapshot []any
					if ready {
						snapshot = append([]any(nil), latest...)
					}
					mu.Unlock()

					if ready {
						if err := queue.Push(innerCtx, combineLatestResult{vs: snapshot}); err != nil {
							return
						}
					}
				}
			}(i, s)
		}

		go func() {
			reading.Wait()
			// innerCtx is already canceled once an error is latched, so the
			// terminal marker goes out on the downstream context.
			_ = queue.Push(ctx, combineLatestResult{terminal: true})
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
			if err := ctrl.Enqueue(ctx, r.vs); err != nil {
				return
			}
		}
	})
}

type raceResult[T any] struct {
	idx int
	v   T
	ok  bool
	err error
}

// Race emits only from the first source to produce a chunk or error,
// cancelling the others as soon as a winner is decided. Zero sources is an
// error.
func Race[T any](sources ...pullstream.Source[T]) pullstream.Source[T] {
	if len(sources) == 0 {
		return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
			ctrl.Error(errors.New("pullstream: operators: race requires at least one source stream"))
		})
	}

	return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
		readers := make([]*pullstream.Reader[T], len(sources))
		for i, s := range sources {
			r, err := s.NewReader()
			if err != nil {
				ctrl.Error(err)
				for _, rr := range readers {
					if rr != nil {
						rr.Release()
					}
				}
				return
			}
			readers[i] = r
		}

		raceCtx, cancelRace := context.WithCancel(ctx)
		results := make(chan raceResult[T], len(readers))
		for i, r := range readers {
			go func(i int, r *pullstream.Reader[T]) {
				v, ok, err := r.Read(raceCtx)
				results <- raceResult[T]{idx: i, v: v, ok: ok, err: err}
			}(i, r)
		}

		first := <-results
		cancelRace()
		for i, r := range readers {
			if i != first.idx {
				r.Cancel(nil)
			}
		}

		winner := readers[first.idx]
		if first.err != nil {
			winner.Release()
			if !pullstream.IsCanceled(first.err) {
				ctrl.Error(first.err)
			}
			return
		}
		if !first.ok {
			winner.Release()
			ctrl.Close()
			return
		}
		if err := ctrl.Enqueue(ctx, first.v); err != nil {
			winner.Cancel(nil)
			return
		}

		defer winner.Release()
		for {
			v, ok, rerr := winner.Read(ctx)
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
