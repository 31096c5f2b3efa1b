package exhaustall

import pullstream "github.com/joeycumines/go-pullstream"

// ExhaustMap is ExhaustAll composed with a projection, exposed under the
// name used throughout the rest of the operator surface (mapping outer
// values directly, rather than requiring pre-coerced inner sources).
func ExhaustMap[T, R any](outer pullstream.Source[T], project pullstream.CoerceFunc[T, R], strategy ...pullstream.Strategy) pullstream.Source[R] {
	return ExhaustAll[T, R](outer, project, strategy...)
}
