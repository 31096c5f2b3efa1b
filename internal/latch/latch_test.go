package latch_test

import (
	"testing"
	"time"

	"github.com/joeycumines/go-pullstream/internal/latch"
	"github.com/stretchr/testify/require"
)

func TestLatch_SignalWakesCurrentWaiters(t *testing.T) {
	l := latch.New()

	w1 := l.Wait()
	w2 := l.Wait()

	done := make(chan struct{}, 2)
	go func() { <-w1; done <- struct{}{} }()
	go func() { <-w2; done <- struct{}{} }()

	select {
	case <-done:
		t.Fatal("waiter woke before Signal")
	case <-time.After(20 * time.Millisecond):
	}

	l.Signal()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("waiter did not wake after Signal")
		}
	}
}

func TestLatch_LateWaiterMissesPastSignal(t *testing.T) {
	l := latch.New()
	l.Signal()

	w := l.Wait()
	select {
	case <-w:
		t.Fatal("new waiter observed a stale signal")
	case <-time.After(20 * time.Millisecond):
	}

	l.Signal()
	require.Eventually(t, func() bool {
		select {
		case <-w:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}
