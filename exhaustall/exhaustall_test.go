package exhaustall_test

import (
	"context"
	"errors"
	"testing"

	pullstream "github.com/joeycumines/go-pullstream"
	"github.com/joeycumines/go-pullstream/exhaustall"
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

// TestExhaustMap_DropsSubsequentSynchronousValues reproduces the literal
// boundary scenario: while the first inner is active, subsequent
// synchronously-available outer values are discarded.
func TestExhaustMap_DropsSubsequentSynchronousValues(t *testing.T) {
	outer := ofInts(1, 2, 3)
	project := func(n int) (pullstream.Source[int], error) {
		return ofInts(n * 10), nil
	}

	out := exhaustall.ExhaustMap[int, int](outer, project)
	got, err := drain(t, out)
	require.NoError(t, err)
	require.Equal(t, []int{10}, got)
}

func TestExhaustAll_StartsNextInnerOnceIdle(t *testing.T) {
	firstDone := make(chan struct{})

	outer := pullstream.New[int](func(ctx context.Context, ctrl *pullstream.Controller[int]) {
		_ = ctrl.Enqueue(ctx, 1)
		<-firstDone
		_ = ctrl.Enqueue(ctx, 2)
		ctrl.Close()
	})

	project := func(v int) (pullstream.Source[int], error) {
		if v == 1 {
			return pullstream.New[int](func(ctx context.Context, ctrl *pullstream.Controller[int]) {
				_ = ctrl.Enqueue(ctx, 10)
				ctrl.Close()
				close(firstDone)
			}), nil
		}
		return ofInts(20), nil
	}

	out := exhaustall.ExhaustAll[int, int](outer, project)
	got, err := drain(t, out)
	require.NoError(t, err)
	require.Equal(t, []int{10, 20}, got)
}

func TestExhaustAll_OuterErrorPropagates(t *testing.T) {
	boom := errors.New("outer boom")
	outer := pullstream.New[int](func(ctx context.Context, ctrl *pullstream.Controller[int]) {
		ctrl.Error(boom)
	})
	project := func(v int) (pullstream.Source[int], error) { return ofInts(v), nil }

	out := exhaustall.ExhaustAll[int, int](outer, project)
	_, err := drain(t, out)
	require.ErrorIs(t, err, boom)
}

func TestExhaustAll_InnerErrorPropagates(t *testing.T) {
	boom := errors.New("inner boom")
	outer := ofInts(1)
	project := func(v int) (pullstream.Source[int], error) {
		return pullstream.New[int](func(ctx context.Context, ctrl *pullstream.Controller[int]) {
			ctrl.Error(boom)
		}), nil
	}

	out := exhaustall.ExhaustAll[int, int](outer, project)
	_, err := drain(t, out)
	require.ErrorIs(t, err, boom)
}
