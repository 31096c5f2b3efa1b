package pullstream_test

import (
	"context"
	"errors"
	"testing"

	"github.com/joeycumines/go-pullstream"
	"github.com/stretchr/testify/require"
)

// double and addOne are Operator[int, int] values, confirming real operator
// functions satisfy the named type without any adapter.
func double(upstream pullstream.Source[int], strategy ...pullstream.Strategy) pullstream.Source[int] {
	return pullstream.Lift[int, int](upstream, func(v int) (int, bool, error) {
		return v * 2, false, nil
	}, strategy...)
}

func addOne(upstream pullstream.Source[int], strategy ...pullstream.Strategy) pullstream.Source[int] {
	return pullstream.Lift[int, int](upstream, func(v int) (int, bool, error) {
		return v + 1, false, nil
	}, strategy...)
}

func TestPipe_ThreadsOperatorsInOrder(t *testing.T) {
	out := pullstream.Pipe[int](ofInts(1, 2, 3), double, addOne)
	got, err := drain(t, out)
	require.NoError(t, err)
	require.Equal(t, []int{3, 5, 7}, got)
}

func TestPipe_NoOperatorsIsIdentity(t *testing.T) {
	src := ofInts(1, 2, 3)
	out := pullstream.Pipe[int](src)
	got, err := drain(t, out)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, got)
}

func TestPipe_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	src := pullstream.New[int](func(ctx context.Context, ctrl *pullstream.Controller[int]) {
		ctrl.Error(boom)
	})
	out := pullstream.Pipe[int](src, double)
	_, err := drain(t, out)
	require.ErrorIs(t, err, boom)
}
