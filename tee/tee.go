// Package tee implements a single-producer, multi-consumer splitter: Tee
// fans a Source out to n independent branches, each observing the identical
// chunk sequence and terminal event, arbitrated by a configurable overflow
// policy when a branch falls behind the others.
//
// Usage note: since the shared source reader is acquired lazily, on the
// first pull from any branch, callers that want every branch to observe the
// same full prefix of the source should acquire (NewReader) every branch
// before driving any of them.
package tee

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pullstream "github.com/joeycumines/go-pullstream"
	"github.com/joeycumines/go-pullstream/telemetry"
)

// Overflow selects the behavior applied when a branch's buffer is full.
type Overflow int

const (
	// Block pauses the whole split until every branch can accept the next
	// chunk. Never overflows, by construction.
	Block Overflow = iota
	// Throw errors only the saturated branch with a "Queue overflow"
	// error; the remaining branches continue to be serviced.
	Throw
	// Cancel errors every branch with a "Queue overflow" error and cancels
	// the source.
	Cancel
)

func (o Overflow) String() string {
	switch o {
	case Block:
		return "block"
	case Throw:
		return "throw"
	case Cancel:
		return "cancel"
	default:
		return fmt.Sprintf("tee.Overflow(%d)", int(o))
	}
}

// Tee returns n independent branches of source, each seeing the identical
// chunk sequence and terminal event. n must be >= 1; n == 1 returns
// []pullstream.Source[T]{source} unchanged (identity).
func Tee[T any](source pullstream.Source[T], n int, opts ...Option) ([]pullstream.Source[T], error) {
	if n < 1 {
		return nil, fmt.Errorf("pullstream: tee: count must be >= 1, got %d", n)
	}

	opt := resolve(opts)
	switch opt.overflow {
	case Block, Throw, Cancel:
	default:
		return nil, errors.New("pullstream: tee: overflow option must be either block, throw, or cancel")
	}

	if n == 1 {
		return []pullstream.Source[T]{source}, nil
	}

	strategy := pullstream.ResolveStrategy(opt.strategy)

	c := &coordinator[T]{
		src:      source,
		overflow: opt.overflow,
		observer: opt.observer,
		ctrls:    make([]*pullstream.Controller[T], n),
		wake:     make(chan struct{}, 1),
	}
	c.ctx, c.cancel = context.WithCancelCause(context.Background())

	branches := make([]pullstream.Source[T], n)
	for i := 0; i < n; i++ {
		i := i
		branches[i] = pullstream.New[T](func(ctx context.Context, ctrl *pullstream.Controller[T]) {
			c.register(i, ctx, ctrl)
		}, strategy)
	}
	return branches, nil
}

type coordinator[T any] struct {
	src      pullstream.Source[T]
	overflow Overflow
	observer telemetry.Observer

	mu               sync.Mutex
	ctrls            []*pullstream.Controller[T] // nil once that branch is done
	alive            int
	started          bool
	lastCancelReason error

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelCauseFunc
}

func (c *coordinator[T]) register(i int, ctx context.Context, ctrl *pullstream.Controller[T]) {
	c.mu.Lock()
	c.ctrls[i] = ctrl
	c.alive++
	first := !c.started
	c.started = true
	c.mu.Unlock()

	if first {
		go c.run()
	}

	go func() {
		for {
			select {
			case <-ctrl.Changed():
				c.poke()
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	c.onBranchCanceled(i, context.Cause(ctx))
}

func (c *coordinator[T]) poke() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *coordinator[T]) onBranchCanceled(i int, reason error) {
	c.mu.Lock()
	if c.ctrls[i] != nil {
		c.ctrls[i] = nil
		c.alive--
	}
	c.lastCancelReason = reason
	remaining := c.alive
	c.mu.Unlock()

	c.poke()
	if remaining == 0 {
		c.cancel(reason)
	}
}

func (c *coordinator[T]) forget(i int, reason error) {
	c.mu.Lock()
	if c.ctrls[i] != nil {
		c.ctrls[i] = nil
		c.alive--
	}
	c.lastCancelReason = reason
	c.mu.Unlock()
}

func (c *coordinator[T]) errorAll(err error) []*pullstream.Controller[T] {
	c.mu.Lock()
	ctrls := append([]*pullstream.Controller[T](nil), c.ctrls...)
	for i := range c.ctrls {
		c.ctrls[i] = nil
	}
	c.alive = 0
	c.lastCancelReason = err
	c.mu.Unlock()
	return ctrls
}

func (c *coordinator[T]) closeAll() []*pullstream.Controller[T] {
	c.mu.Lock()
	ctrls := append([]*pullstream.Controller[T](nil), c.ctrls...)
	for i := range c.ctrls {
		c.ctrls[i] = nil
	}
	c.alive = 0
	c.mu.Unlock()
	return ctrls
}

func (c *coordinator[T]) run() {
	reader, err := c.src.NewReader()
	if err != nil {
		for _, ctrl := range c.errorAll(err) {
			if ctrl != nil {
				ctrl.Error(err)
			}
		}
		return
	}

	for {
		c.mu.Lock()
		if c.alive == 0 {
			reason := c.lastCancelReason
			c.mu.Unlock()
			reader.Cancel(reason)
			return
		}
		ready := c.readyLocked()
		c.mu.Unlock()

		if !ready {
			select {
			case <-c.wake:
				continue
			case <-c.ctx.Done():
				c.mu.Lock()
				reason := c.lastCancelReason
				c.mu.Unlock()
				reader.Cancel(reason)
				return
			}
		}

		v, ok, rerr := reader.Read(c.ctx)
		if rerr != nil {
			if !pullstream.IsCanceled(rerr) {
				for _, ctrl := range c.errorAll(rerr) {
					if ctrl != nil {
						ctrl.Error(rerr)
					}
				}
			}
			reader.Release()
			return
		}
		if !ok {
			for _, ctrl := range c.closeAll() {
				if ctrl != nil {
					ctrl.Close()
				}
			}
			reader.Release()
			return
		}

		if reason, done := c.distribute(v); done {
			reader.Cancel(reason)
			return
		}
	}
}

// readyLocked requires c.mu to already be held.
func (c *coordinator[T]) readyLocked() bool {
	switch c.overflow {
	case Block:
		for _, ctrl := range c.ctrls {
			if ctrl != nil && ctrl.DesiredSize() <= 0 {
				return false
			}
		}
		return true
	default: // Throw, Cancel
		for _, ctrl := range c.ctrls {
			if ctrl != nil && ctrl.DesiredSize() > 0 {
				return true
			}
		}
		return false
	}
}

func (c *coordinator[T]) distribute(v T) (reason error, done bool) {
	c.mu.Lock()
	ctrls := append([]*pullstream.Controller[T](nil), c.ctrls...)
	overflow := c.overflow
	c.mu.Unlock()

	switch overflow {
	case Block:
		for _, ctrl := range ctrls {
			if ctrl == nil {
				continue
			}
			if err := ctrl.Enqueue(c.ctx, v); err != nil {
				return err, true
			}
		}
		return nil, false

	case Throw:
		for i, ctrl := range ctrls {
			if ctrl == nil {
				continue
			}
			if !ctrl.TryEnqueue(v) {
				err := fmt.Errorf("pullstream: tee: Queue overflow on branch %d", i)
				pullstream.GetLogger().Log(pullstream.LevelWarn, "tee: branch overflow, branch errored", "branch", i, "overflow", "throw")
				if c.observer != nil {
					c.observer.Overflow(i, "throw")
				}
				ctrl.Error(err)
				c.forget(i, err)
			}
		}
		return nil, false

	default: // Cancel
		for i, ctrl := range ctrls {
			if ctrl == nil {
				continue
			}
			if !ctrl.TryEnqueue(v) {
				err := fmt.Errorf("pullstream: tee: Queue overflow on branch %d", i)
				pullstream.GetLogger().Log(pullstream.LevelWarn, "tee: branch overflow, cancelling all branches", "branch", i, "overflow", "cancel")
				if c.observer != nil {
					c.observer.Overflow(i, "cancel")
				}
				for _, c2 := range c.errorAll(err) {
					if c2 != nil {
						c2.Error(err)
					}
				}
				return err, true
			}
		}
		return nil, false
	}
}
