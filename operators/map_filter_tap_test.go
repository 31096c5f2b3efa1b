package operators_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-pullstream/consumers"
	"github.com/joeycumines/go-pullstream/creators"
	"github.com/joeycumines/go-pullstream/operators"
)

func TestMap(t *testing.T) {
	ctx := context.Background()
	out := operators.Map(creators.Of(1, 2, 3), func(n int) int { return n * 2 })
	got, err := consumers.ToArray(ctx, out)
	require.NoError(t, err)
	require.Equal(t, []int{2, 4, 6}, got)
}

func TestFilter(t *testing.T) {
	ctx := context.Background()
	out := operators.Filter(creators.Of(1, 2, 3, 4, 5), func(n int) bool { return n%2 == 0 })
	got, err := consumers.ToArray(ctx, out)
	require.NoError(t, err)
	require.Equal(t, []int{2, 4}, got)
}

func TestTap(t *testing.T) {
	ctx := context.Background()
	var seen []int
	out := operators.Tap(creators.Of(1, 2, 3), func(n int) { seen = append(seen, n) })
	got, err := consumers.ToArray(ctx, out)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, got)
	require.Equal(t, []int{1, 2, 3}, seen)
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	out := operators.Scan(creators.Of(1, 2, 3, 4), 0, func(acc, v int) int { return acc + v })
	got, err := consumers.ToArray(ctx, out)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3, 6, 10}, got)
}

func TestIgnoreElements(t *testing.T) {
	ctx := context.Background()
	out := operators.IgnoreElements[int](creators.Of(1, 2, 3))
	got, err := consumers.ToArray(ctx, out)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDefaultIfEmpty_empty(t *testing.T) {
	ctx := context.Background()
	out := operators.DefaultIfEmpty[int](creators.Empty[int](), 42)
	got, err := consumers.ToArray(ctx, out)
	require.NoError(t, err)
	require.Equal(t, []int{42}, got)
}

func TestDefaultIfEmpty_nonEmpty(t *testing.T) {
	ctx := context.Background()
	out := operators.DefaultIfEmpty(creators.Of(1, 2), 42)
	got, err := consumers.ToArray(ctx, out)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, got)
}

type testErr string

func (e testErr) Error() string { return string(e) }

func TestMap_propagatesError(t *testing.T) {
	ctx := context.Background()
	boom := testErr("boom")
	out := operators.Map(creators.ThrowError[int](boom), func(n int) int { return n })
	_, err := consumers.ToArray(ctx, out)
	require.ErrorIs(t, err, boom)
}
