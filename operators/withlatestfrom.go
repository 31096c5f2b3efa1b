package operators

import (
	"context"
	"sync"

	pullstream "github.com/joeycumines/go-pullstream"
)

// WithLatestFrom emits, for every value source produces, a combination of it
// with the latest value from each of others — but only once every other has
// emitted at least once. Source chunks arriving before every other has
// emitted are dropped silently (not buffered).
func WithLatestFrom[T, R any](source pullstream.Source[T], combine func(v T, others []any) R, others ...pullstream.Source[any]) pullstream.Source[R] {
	return pullstream.New[R](func(ctx context.Context, ctrl *pullstream.Controller[R]) {
		reader, err := source.NewReader()
		if err != nil {
			ctrl.Error(err)
			return
		}
		defer reader.Release()

		n := len(others)
		latest := make([]any, n)
		have := make([]bool, n)
		var mu sync.Mutex

		othersCtx, cancelOthers := context.WithCancel(ctx)

		var wg sync.WaitGroup
		wg.Add(n)
		for i, o := range others {
			go func(i int, o pullstream.Source[any]) {
				defer wg.Done()
				r, err := o.NewReader()
				if err != nil {
					return
				}
				defer r.Release()
				for {
					v, ok, rerr := r.Read(othersCtx)
					if rerr != nil || !ok {
						return
					}
					mu.Lock()
					latest[i] = v
					have[i] = true
					mu.Unlock()
				}
			}(i, o)
		}
		defer func() {
			cancelOthers()
			wg.Wait()
		}()

		allReady := func() ([]any, bool) {
			mu.Lock()
			defer mu.Unlock()
			out := make([]any, n)
			for i := range have {
				if !have[i] {
					return nil, false
				}
				out[i] = latest[i]
			}
			return out, true
		}

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
			snapshot, ready := allReady()
			if !ready {
				continue
			}
			if err := ctrl.Enqueue(ctx, combine(v, snapshot)); err != nil {
				return
			}
		}
	})
}
