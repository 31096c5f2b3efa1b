package operators_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-pullstream/consumers"
	"github.com/joeycumines/go-pullstream/creators"
	"github.com/joeycumines/go-pullstream/operators"
)

func TestTake(t *testing.T) {
	ctx := context.Background()
	got, err := consumers.ToArray(ctx, operators.Take(creators.Of(1, 2, 3, 4, 5), 3))
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, got)
}

func TestTake_zero(t *testing.T) {
	ctx := context.Background()
	got, err := consumers.ToArray(ctx, operators.Take(creators.Of(1, 2, 3), 0))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestTake_moreThanAvailable(t *testing.T) {
	ctx := context.Background()
	got, err := consumers.ToArray(ctx, operators.Take(creators.Of(1, 2), 5))
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, got)
}

func TestTake_negative(t *testing.T) {
	ctx := context.Background()
	_, err := consumers.ToArray(ctx, operators.Take(creators.Of(1, 2, 3), -1))
	require.Error(t, err)
}

func TestFirst_noPred(t *testing.T) {
	ctx := context.Background()
	got, err := consumers.ToArray(ctx, operators.First[int](creators.Of(1, 2, 3), nil))
	require.NoError(t, err)
	require.Equal(t, []int{1}, got)
}

func TestFirst_withPred(t *testing.T) {
	ctx := context.Background()
	got, err := consumers.ToArray(ctx, operators.First(creators.Of(1, 2, 3, 4), func(n int) bool { return n%2 == 0 }))
	require.NoError(t, err)
	require.Equal(t, []int{2}, got)
}

func TestFirst_empty(t *testing.T) {
	ctx := context.Background()
	got, err := consumers.ToArray(ctx, operators.First[int](creators.Empty[int](), nil))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestLast_noPred(t *testing.T) {
	ctx := context.Background()
	got, err := consumers.ToArray(ctx, operators.Last[int](creators.Of(1, 2, 3), nil))
	require.NoError(t, err)
	require.Equal(t, []int{3}, got)
}

func TestLast_withPred(t *testing.T) {
	ctx := context.Background()
	got, err := consumers.ToArray(ctx, operators.Last(creators.Of(1, 2, 3, 4), func(n int) bool { return n%2 == 0 }))
	require.NoError(t, err)
	require.Equal(t, []int{4}, got)
}

func TestLast_empty(t *testing.T) {
	ctx := context.Background()
	got, err := consumers.ToArray(ctx, operators.Last[int](creators.Empty[int](), nil))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestStartWith(t *testing.T) {
	ctx := context.Background()
	got, err := consumers.ToArray(ctx, operators.StartWith(creators.Of(3, 4), 1, 2))
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4}, got)
}

func TestStartWith_emptyUpstream(t *testing.T) {
	ctx := context.Background()
	got, err := consumers.ToArray(ctx, operators.StartWith(creators.Empty[int](), 1, 2))
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, got)
}
