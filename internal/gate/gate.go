// Package gate provides a bounded-concurrency primitive used by mergeall to
// cap how many inner sources are read concurrently. It is a thin wrapper
// over [golang.org/x/sync/semaphore] rather than a hand-rolled channel
// semaphore.
package gate

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate is a counting semaphore with n initial permits.
type Gate struct {
	sem *semaphore.Weighted
}

// New returns a Gate with n initial permits. n must be positive; mergeall
// translates an "unbounded" concurrency request into a very large n rather
// than constructing a Gate with n <= 0.
func New(n int) *Gate {
	if n <= 0 {
		panic("gate: n must be positive")
	}
	return &Gate{sem: semaphore.NewWeighted(int64(n))}
}

// Acquire blocks until a permit is available or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release returns a permit, waking one queued waiter if any.
func (g *Gate) Release() {
	g.sem.Release(1)
}
