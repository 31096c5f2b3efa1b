package switchall

import (
	"sync"

	pullstream "github.com/joeycumines/go-pullstream"
	"github.com/joeycumines/go-pullstream/internal/abortsignal"
)

// ProjectFunc projects an outer chunk into an inner Source. The signal is
// fresh per call and is aborted the instant a newer outer chunk supersedes
// this projection, so long-running external work (an HTTP request, a
// subprocess) started inside project can observe it and stop early.
type ProjectFunc[T, R any] func(v T, signal *abortsignal.Signal) (pullstream.Source[R], error)

// SwitchMap is SwitchAll composed with a projection: project(v) replaces
// coerce(v), and the signal given to the previous call is aborted at the
// moment the next outer item begins projecting.
func SwitchMap[T, R any](outer pullstream.Source[T], project ProjectFunc[T, R], strategy ...pullstream.Strategy) pullstream.Source[R] {
	var mu sync.Mutex
	var prev *abortsignal.Controller

	coerce := func(v T) (pullstream.Source[R], error) {
		mu.Lock()
		if prev != nil {
			prev.Abort(nil)
		}
		ctrl := abortsignal.NewController()
		prev = ctrl
		mu.Unlock()

		return project(v, ctrl.Signal())
	}

	return SwitchAll[T, R](outer, coerce, strategy...)
}
