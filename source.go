package pullstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultHighWaterMark is the queuing strategy's highWaterMark, used whenever
// a Strategy isn't supplied, or is supplied with a non-positive value.
const DefaultHighWaterMark = 16

// Strategy models a queuing strategy: the positive bound for a Controller's
// DesiredSize.
type Strategy struct {
	// HighWaterMark is the buffer capacity a Controller honors before it
	// reports a non-positive DesiredSize. Non-positive values are treated
	// as DefaultHighWaterMark.
	HighWaterMark int
}

func (s Strategy) normalize() Strategy {
	if s.HighWaterMark <= 0 {
		s.HighWaterMark = DefaultHighWaterMark
	}
	return s
}

// ResolveStrategy returns the first Strategy in strategies, normalized, or
// the default Strategy if none was given. Most operators in this module
// accept a trailing variadic Strategy for exactly this reason: `op(src)` uses
// the default, `op(src, pullstream.Strategy{HighWaterMark: 1})` overrides it.
// StartWith, CombineLatest, Race and WithLatestFrom, whose trailing
// parameter is already variadic, take no Strategy and always use the
// default; MergeAll and Tee take theirs through a WithStrategy option.
func ResolveStrategy(strategies ...Strategy) Strategy {
	if len(strategies) == 0 {
		return Strategy{HighWaterMark: DefaultHighWaterMark}
	}
	return strategies[0].normalize()
}

// ErrLocked is returned by Source.NewReader when a reader has already been
// acquired from that Source.
var ErrLocked = errors.New("pullstream: source already has an active reader")

// Source is an ordered, possibly infinite sequence of typed chunks,
// terminated by either a successful end-of-stream or a failure. Exactly one
// Reader may be acquired at a time, and acquisition is one-shot: a Source
// that has ever had a Reader acquired from it cannot be read again, even
// after that Reader is released.
type Source[T any] interface {
	// NewReader acquires the exclusive Reader for this Source. It returns
	// ErrLocked if a reader has already been acquired.
	NewReader() (*Reader[T], error)
}

// Controller is the emission surface paired with a Source being produced.
// Its methods must be called by one producer goroutine at a time: usually
// the one driving the Source's StartFunc, though tee's coordinator drives
// its branches' Controllers from its own goroutine. Only the closed flag is
// guarded by a lock; an Enqueue racing a Close or Error from another
// goroutine is not synchronized.
type Controller[T any] struct {
	hwm     int
	ch      chan T
	mu      sync.Mutex
	closed  bool
	err     error
	pending int64
	changed chan struct{}
}

func newController[T any](hwm int) *Controller[T] {
	return &Controller[T]{hwm: hwm, ch: make(chan T, hwm), changed: make(chan struct{})}
}

// DesiredSize reports how many more chunks the downstream can currently
// accept. A value <= 0 means the producer should pause.
func (c *Controller[T]) DesiredSize() int {
	return c.hwm - int(atomic.LoadInt64(&c.pending))
}

// Changed returns a channel that's closed the next time a Read consumes a
// chunk (and so DesiredSize may have increased), or the controller reaches a
// terminal state. Callers that need to wait for capacity rather than poll —
// such as tee's overflow-aware distribution across branches — select on the
// channel returned here and re-check DesiredSize on wake.
func (c *Controller[T]) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

func (c *Controller[T]) signalChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signalChangedLocked()
}

// signalChangedLocked requires c.mu to already be held.
func (c *Controller[T]) signalChangedLocked() {
	ch := c.changed
	c.changed = make(chan struct{})
	close(ch)
}

// Enqueue delivers a chunk downstream, blocking until there's buffer space
// or ctx is done. After Close or Error, Enqueue is a silent no-op, per the
// controller's terminal-state invariant.
func (c *Controller[T]) Enqueue(ctx context.Context, v T) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil
	}

	atomic.AddInt64(&c.pending, 1)
	select {
	case c.ch <- v:
		return nil
	case <-ctx.Done():
		atomic.AddInt64(&c.pending, -1)
		return context.Cause(ctx)
	}
}

// TryEnqueue attempts a non-blocking Enqueue, returning false if the
// downstream buffer currently has no available capacity (DesiredSize <= 0).
// Used by overflow policies that must not block on a single saturated
// consumer; see package tee.
func (c *Controller[T]) TryEnqueue(v T) bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return true
	}

	select {
	case c.ch <- v:
		atomic.AddInt64(&c.pending, 1)
		return true
	default:
		return false
	}
}

// Close is the terminal success signal. Idempotent: once closed or errored,
// further calls are no-ops.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
	c.signalChangedLocked()
}

// Error is the terminal failure signal. Idempotent: the first of Close/Error
// wins.
func (c *Controller[T]) Error(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.err = err
	close(c.ch)
	c.signalChangedLocked()
}

// Reader is the consumer-facing handle acquired from a Source. Reads are
// serialized by the caller; Reader itself does not guard against concurrent
// Read calls, matching "operations are serialized per reader" in the data
// model.
type Reader[T any] struct {
	ctrl     *Controller[T]
	cancel   context.CancelCauseFunc
	released int32
}

// Read returns the next chunk. ok is false on either a clean end-of-stream
// (err is nil) or a terminal failure (err is non-nil). A context error is
// returned verbatim via context.Cause when ctx is done before a chunk or the
// terminal event arrives.
func (r *Reader[T]) Read(ctx context.Context) (T, bool, error) {
	select {
	case v, open := <-r.ctrl.ch:
		if !open {
			r.ctrl.mu.Lock()
			err := r.ctrl.err
			r.ctrl.mu.Unlock()
			var zero T
			return zero, false, err
		}
		atomic.AddInt64(&r.ctrl.pending, -1)
		r.ctrl.signalChanged()
		return v, true, nil
	case <-ctx.Done():
		var zero T
		return zero, false, context.Cause(ctx)
	}
}

// Cancel signals the producer to stop, for the given reason, and releases
// the reader. It is safe to call multiple times; only the first call has an
// effect. A nil reason cancels with context.Canceled.
func (r *Reader[T]) Cancel(reason error) {
	if !atomic.CompareAndSwapInt32(&r.released, 0, 1) {
		return
	}
	r.cancel(reason)
}

// Release cancels the reader with no specific reason, if not already
// canceled or otherwise released. Every acquired Reader must be released
// exactly once.
func (r *Reader[T]) Release() {
	r.Cancel(nil)
}

// StartFunc produces chunks into ctrl until ctx is done or a terminal event
// is emitted. It is run on its own goroutine, started by the first (only)
// call to NewReader.
type StartFunc[T any] func(ctx context.Context, ctrl *Controller[T])

type source[T any] struct {
	strategy Strategy
	start    StartFunc[T]
	mu       sync.Mutex
	locked   bool
}

// New builds a Source whose producer loop is start, run on a dedicated
// goroutine from the moment NewReader is first (and only) called.
func New[T any](start StartFunc[T], strategy ...Strategy) Source[T] {
	return &source[T]{strategy: ResolveStrategy(strategy...), start: start}
}

func (s *source[T]) NewReader() (*Reader[T], error) {
	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return nil, ErrLocked
	}
	s.locked = true
	s.mu.Unlock()

	ctrl := newController[T](s.strategy.HighWaterMark)
	ctx, cancel := context.WithCancelCause(context.Background())

	go func() {
		defer func() {
			if p := recover(); p != nil {
				ctrl.Error(fmt.Errorf("pullstream: panic in source: %v", p))
			}
		}()
		s.start(ctx, ctrl)
	}()

	return &Reader[T]{ctrl: ctrl, cancel: cancel}, nil
}

// IsCanceled reports whether err is (or wraps) a cancellation, as opposed to
// a genuine upstream or transform failure. Per the error-handling design,
// cancellation is not an error: consumers should not surface it the same way
// as a failed read.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
