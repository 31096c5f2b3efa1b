package operators

import pullstream "github.com/joeycumines/go-pullstream"

// Distinct emits only chunks whose key (per keyFn) has not been seen before,
// across the whole stream.
func Distinct[T any, K comparable](upstream pullstream.Source[T], keyFn func(T) K, strategy ...pullstream.Strategy) pullstream.Source[T] {
	seen := make(map[K]struct{})
	return pullstream.Lift[T, T](upstream, func(v T) (T, bool, error) {
		k := keyFn(v)
		if _, ok := seen[k]; ok {
			var zero T
			return zero, true, nil
		}
		seen[k] = struct{}{}
		return v, false, nil
	}, strategy...)
}

// DistinctUntilChanged emits only chunks whose key differs from the
// immediately preceding emitted chunk's key.
func DistinctUntilChanged[T any, K comparable](upstream pullstream.Source[T], keyFn func(T) K, strategy ...pullstream.Strategy) pullstream.Source[T] {
	var have bool
	var last K
	return pullstream.Lift[T, T](upstream, func(v T) (T, bool, error) {
		k := keyFn(v)
		if have && k == last {
			var zero T
			return zero, true, nil
		}
		have = true
		last = k
		return v, false, nil
	}, strategy...)
}
