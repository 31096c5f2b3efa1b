package gate_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-pullstream/internal/gate"
	"github.com/stretchr/testify/require"
)

func TestGate_LimitsConcurrency(t *testing.T) {
	g := gate.New(2)

	var running, max int32
	bump := func(delta int32) {
		n := atomic.AddInt32(&running, delta)
		for {
			m := atomic.LoadInt32(&max)
			if n <= m || atomic.CompareAndSwapInt32(&max, m, n) {
				break
			}
		}
	}

	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			require.NoError(t, g.Acquire(context.Background()))
			bump(1)
			time.Sleep(10 * time.Millisecond)
			bump(-1)
			g.Release()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}

	require.LessOrEqual(t, atomic.LoadInt32(&max), int32(2))
}

func TestGate_AcquireRespectsContext(t *testing.T) {
	g := gate.New(1)
	require.NoError(t, g.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := g.Acquire(ctx)
	require.Error(t, err)
}
