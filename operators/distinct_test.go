package operators_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-pullstream/consumers"
	"github.com/joeycumines/go-pullstream/creators"
	"github.com/joeycumines/go-pullstream/operators"
)

func TestDistinct(t *testing.T) {
	ctx := context.Background()
	out := operators.Distinct(creators.Of(1, 2, 1, 3, 2, 4), func(n int) int { return n })
	got, err := consumers.ToArray(ctx, out)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4}, got)
}

func TestDistinct_keyFn(t *testing.T) {
	ctx := context.Background()
	out := operators.Distinct(creators.Of("a", "aa", "b", "bb", "ccc"), func(s string) int { return len(s) })
	got, err := consumers.ToArray(ctx, out)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "aa", "ccc"}, got)
}

func TestDistinctUntilChanged(t *testing.T) {
	ctx := context.Background()
	out := operators.DistinctUntilChanged(creators.Of(1, 1, 2, 2, 1, 3, 3, 3), func(n int) int { return n })
	got, err := consumers.ToArray(ctx, out)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 1, 3}, got)
}

func TestDistinctUntilChanged_empty(t *testing.T) {
	ctx := context.Background()
	out := operators.DistinctUntilChanged(creators.Empty[int](), func(n int) int { return n })
	got, err := consumers.ToArray(ctx, out)
	require.NoError(t, err)
	require.Empty(t, got)
}
