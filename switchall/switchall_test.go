package switchall_test

import (
	"context"
	"errors"
	"testing"
	"time"

	pullstream "github.com/joeycumines/go-pullstream"
	"github.com/joeycumines/go-pullstream/internal/abortsignal"
	"github.com/joeycumines/go-pullstream/switchall"
	"github.com/stretchr/testify/require"
)

func ofInts(vs ...int) pullstream.Source[int] {
	return pullstream.New[int](func(ctx context.Context, ctrl *pullstream.Controller[int]) {
		for _, v := range vs {
			if err := ctrl.Enqueue(ctx, v); err != nil {
				return
			}
		}
		ctrl.Close()
	})
}

func drain[T any](t *testing.T, src pullstream.Source[T]) ([]T, error) {
	t.Helper()
	reader, err := src.NewReader()
	require.NoError(t, err)
	defer reader.Release()

	var out []T
	for {
		v, ok, err := reader.Read(context.Background())
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

func TestSwitchAll_SwitchesToNewestInner(t *testing.T) {
	firstStarted := make(chan struct{})
	firstCanceled := make(chan error, 1)

	outer := pullstream.New[int](func(ctx context.Context, ctrl *pullstream.Controller[int]) {
		_ = ctrl.Enqueue(ctx, 1)
		<-firstStarted
		_ = ctrl.Enqueue(ctx, 2)
		ctrl.Close()
	})

	coerce := func(v int) (pullstream.Source[int], error) {
		if v == 1 {
			return pullstream.New[int](func(ctx context.Context, ctrl *pullstream.Controller[int]) {
				close(firstStarted)
				<-ctx.Done()
				firstCanceled <- context.Cause(ctx)
			}), nil
		}
		return ofInts(v * 10), nil
	}

	out := switchall.SwitchAll[int, int](outer, coerce)
	got, err := drain(t, out)
	require.NoError(t, err)
	require.Equal(t, []int{20}, got)

	select {
	case <-firstCanceled:
	case <-time.After(time.Second):
		t.Fatal("previous inner was not cancelled on switch")
	}
}

func TestSwitchAll_OuterErrorPropagates(t *testing.T) {
	boom := errors.New("outer boom")
	outer := pullstream.New[int](func(ctx context.Context, ctrl *pullstream.Controller[int]) {
		ctrl.Error(boom)
	})
	coerce := func(v int) (pullstream.Source[int], error) { return ofInts(v), nil }

	out := switchall.SwitchAll[int, int](outer, coerce)
	_, err := drain(t, out)
	require.ErrorIs(t, err, boom)
}

func TestSwitchAll_InnerErrorPropagates(t *testing.T) {
	boom := errors.New("inner boom")
	outer := ofInts(1)
	coerce := func(v int) (pullstream.Source[int], error) {
		return pullstream.New[int](func(ctx context.Context, ctrl *pullstream.Controller[int]) {
			ctrl.Error(boom)
		}), nil
	}

	out := switchall.SwitchAll[int, int](outer, coerce)
	_, err := drain(t, out)
	require.ErrorIs(t, err, boom)
}

func TestSwitchMap_AbortsPreviousSignalOnSwitch(t *testing.T) {
	firstStarted := make(chan struct{})
	var firstSignal *abortsignal.Signal

	outer := pullstream.New[int](func(ctx context.Context, ctrl *pullstream.Controller[int]) {
		_ = ctrl.Enqueue(ctx, 1)
		<-firstStarted
		_ = ctrl.Enqueue(ctx, 2)
		ctrl.Close()
	})

	project := func(v int, signal *abortsignal.Signal) (pullstream.Source[int], error) {
		if v == 1 {
			firstSignal = signal
			return pullstream.New[int](func(ctx context.Context, ctrl *pullstream.Controller[int]) {
				close(firstStarted)
				<-ctx.Done()
			}), nil
		}
		return ofInts(v * 10), nil
	}

	out := switchall.SwitchMap[int, int](outer, project)
	got, err := drain(t, out)
	require.NoError(t, err)
	require.Equal(t, []int{20}, got)
	require.True(t, firstSignal.Aborted())
}
