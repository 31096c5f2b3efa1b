package operators

import (
	"context"
	"errors"
	"fmt"
	"time"

	pullstream "github.com/joeycumines/go-pullstream"
)

// Delay shifts every upstream chunk (and the terminal close, but not an
// error) by d, preserving order. Timers are cleared on every terminal
// transition to avoid leaking them.
func Delay[T any](upstream pullstream.Source[T], d time.Duration, strategy ...pullstream.Strategy) pullstream.Source[T] {
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
				timer := time.NewTimer(d)
				select {
				case <-timer.C:
					ctrl.Close()
				case <-ctx.Done():
					timer.Stop()
				}
				return
			}

			timer := time.NewTimer(d)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
			if err := ctrl.Enqueue(ctx, v); err != nil {
				return
			}
		}
	}, strategy...)
}

// DebounceTime emits the most recent upstream chunk only after d has
// elapsed with no further chunks arriving. Upstream closing early doesn't
// cut a pending window short: the close is held until the window that was
// already running elapses, then the pending value is emitted before the
// close. The timer armed on the first relevant event and cleared on every
// terminal transition mirrors longpoll.Channel's PartialTimeout arming and
// catrate.Limiter's sliding window eviction timer. d must be > 0.
func DebounceTime[T any](upstream pullstream.Source[T], d time.Duration, strategy ...pullstream.Strategy) pullstream.Source[T] {
	if d <= 0 {
		return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
			ctrl.Error(errors.New("pullstream: operators: Debounce duration must be positive"))
		}, strategy...)
	}

	return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
		reader, err := upstream.NewReader()
		if err != nil {
			ctrl.Error(err)
			return
		}
		defer reader.Release()

		type read struct {
			v    T
			ok   bool
			err  error
		}
		reads := make(chan read)
		readCtx, cancelRead := context.WithCancel(ctx)
		defer cancelRead()
		go func() {
			for {
				v, ok, rerr := reader.Read(readCtx)
				select {
				case reads <- read{v: v, ok: ok, err: rerr}:
				case <-readCtx.Done():
					return
				}
				if !ok || rerr != nil {
					return
				}
			}
		}()

		timer := time.NewTimer(d)
		timer.Stop()
		defer timer.Stop()
		var have bool
		var pending T

		for {
			var timerC <-chan time.Time
			if have {
				timerC = timer.C
			}
			select {
			case r := <-reads:
				if r.err != nil {
					if pullstream.IsCanceled(r.err) {
						return
					}
					ctrl.Error(r.err)
					return
				}
				if !r.ok {
					if !have {
						ctrl.Close()
						return
					}
					// a pending value is still debouncing: upstream closing
					// early doesn't cut its window short, so wait out the
					// remainder of it (already running via the last Reset)
					// before flushing and closing.
					select {
					case <-timer.C:
					case <-ctx.Done():
						return
					}
					if err := ctrl.Enqueue(ctx, pending); err != nil {
						return
					}
					ctrl.Close()
					return
				}
				if have && !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				pending = r.v
				have = true
				timer.Reset(d)

			case <-timerC:
				have = false
				if err := ctrl.Enqueue(ctx, pending); err != nil {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}, strategy...)
}

// ThrottleOptions configures ThrottleTime's edge behavior explicitly, rather
// than inferring leading/trailing intent from a single implicit mode.
type ThrottleOptions struct {
	// Leading emits the first chunk of each active window immediately.
	Leading bool
	// Trailing emits the most recent chunk at the end of each active
	// window, and (per the documented resolution of the open question)
	// also on upstream close if a chunk is pending.
	Trailing bool
}

// ThrottleTime emits at most one chunk per d-length window. Leading and
// Trailing are independently toggleable; the pending trailing value (if
// any) is only emitted on upstream close when Trailing is true. d must be
// > 0.
func ThrottleTime[T any](upstream pullstream.Source[T], d time.Duration, opts ThrottleOptions, strategy ...pullstream.Strategy) pullstream.Source[T] {
	if d <= 0 {
		return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
			ctrl.Error(errors.New("pullstream: operators: Throttle duration must be positive"))
		}, strategy...)
	}

	return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
		reader, err := upstream.NewReader()
		if err != nil {
			ctrl.Error(err)
			return
		}
		defer reader.Release()

		type read struct {
			v   T
			ok  bool
			err error
		}
		reads := make(chan read)
		readCtx, cancelRead := context.WithCancel(ctx)
		defer cancelRead()
		go func() {
			for {
				v, ok, rerr := reader.Read(readCtx)
				select {
				case reads <- read{v: v, ok: ok, err: rerr}:
				case <-readCtx.Done():
					return
				}
				if !ok || rerr != nil {
					return
				}
			}
		}()

		var windowOpen bool
		var have bool
		var pending T
		timer := time.NewTimer(d)
		timer.Stop()
		defer timer.Stop()

		for {
			var timerC <-chan time.Time
			if windowOpen {
				timerC = timer.C
			}

			select {
			case <-timerC:
				windowOpen = false
				if opts.Trailing && have {
					if err := ctrl.Enqueue(ctx, pending); err != nil {
						return
					}
					have = false
				}

			case r := <-reads:
				if r.err != nil {
					if pullstream.IsCanceled(r.err) {
						return
					}
					ctrl.Error(r.err)
					return
				}
				if !r.ok {
					if opts.Trailing && have {
						if err := ctrl.Enqueue(ctx, pending); err != nil {
							return
						}
					}
					ctrl.Close()
					return
				}

				if !windowOpen {
					windowOpen = true
					timer.Reset(d)
					have = false
					if opts.Leading {
						if err := ctrl.Enqueue(ctx, r.v); err != nil {
							return
						}
					} else {
						pending = r.v
						have = true
					}
				} else {
					pending = r.v
					have = true
				}

			case <-ctx.Done():
				return
			}
		}
	}, strategy...)
}

// Timeout emits a synthetic error if d elapses with no chunk (and no
// terminal event) since the last one, and cancels upstream. d must be > 0.
func Timeout[T any](upstream pullstream.Source[T], d time.Duration, strategy ...pullstream.Strategy) pullstream.Source[T] {
	if d <= 0 {
		return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
			ctrl.Error(errors.New("pullstream: operators: Timeout duration must be positive"))
		}, strategy...)
	}

	return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
		reader, err := upstream.NewReader()
		if err != nil {
			ctrl.Error(err)
			return
		}
		defer reader.Release()

		type read struct {
			v   T
			ok  bool
			err error
		}
		reads := make(chan read, 1)
		readCtx, cancelRead := context.WithCancel(ctx)
		defer cancelRead()

		readNext := func() {
			go func() {
				v, ok, rerr := reader.Read(readCtx)
				select {
				case reads <- read{v: v, ok: ok, err: rerr}:
				case <-readCtx.Done():
				}
			}()
		}
		readNext()

		timer := time.NewTimer(d)
		defer timer.Stop()

		for {
			select {
			case r := <-reads:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				if r.err != nil {
					if pullstream.IsCanceled(r.err) {
						return
					}
					ctrl.Error(r.err)
					return
				}
				if !r.ok {
					ctrl.Close()
					return
				}
				if err := ctrl.Enqueue(ctx, r.v); err != nil {
					return
				}
				timer.Reset(d)
				readNext()

			case <-timer.C:
				ctrl.Error(fmt.Errorf("pullstream: operators: Stream timeout after %dms", d.Milliseconds()))
				reader.Cancel(fmt.Errorf("pullstream: operators: timeout"))
				return

			case <-ctx.Done():
				return
			}
		}
	}, strategy...)
}

// CatchError evaluates sel with the upstream error and the original upstream
// source if upstream fails, switching to read from the fallback source it
// returns. Errors from the fallback are terminal.
func CatchError[T any](upstream pullstream.Source[T], sel func(err error, original pullstream.Source[T]) (pullstream.Source[T], error), strategy ...pullstream.Strategy) pullstream.Source[T] {
	return pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
		reader, err := upstream.NewReader()
		if err != nil {
			ctrl.Error(err)
			return
		}
		defer reader.Release()

		// drainLoop forwards r's chunks until close, cancellation, or an
		// error. A non-cancellation error from upstream is handed to sel and
		// the fallback it returns is drained by a nested call; an error from
		// the fallback itself is passed downstream as is.
		var drainLoop func(r *pullstream.Reader[T], fallback bool)
		drainLoop = func(r *pullstream.Reader[T], isFallback bool) {
			for {
				v, ok, rerr := r.Read(ctx)
				if rerr != nil {
					if pullstream.IsCanceled(rerr) {
						return
					}
					if isFallback {
						ctrl.Error(rerr)
						return
					}
					fallback, serr := sel(rerr, upstream)
					if serr != nil {
						ctrl.Error(serr)
						return
					}
					fr, ferr := fallback.NewReader()
					if ferr != nil {
						ctrl.Error(ferr)
						return
					}
					defer fr.Release()
					drainLoop(fr, true)
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
		}
		drainLoop(reader, false)
	}, strategy...)
}
