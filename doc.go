// Package pullstream provides a reactive-style streaming library built on
// pull-based sources with explicit backpressure, in the spirit of readable
// streams from JavaScript-compatible runtimes, but grounded in Go's own
// concurrency primitives rather than a promise/microtask runtime.
//
// # Architecture
//
// A [Source] is a one-shot, ordered sequence of typed chunks terminated by
// either a close or an error. Exactly one [Reader] may be acquired from a
// Source at a time; the Reader is released by an explicit call to its
// Release or Cancel method, which every acquirer makes exactly once, whether
// or not the Source was drained to completion.
//
// The backpressure signal is [Controller.DesiredSize]: positive means the
// downstream wants more, zero or negative means pause. An operator's
// producer loop honors this by blocking on a bounded channel send, which is
// the direct Go equivalent of a JS producer awaiting its next pull.
//
// # Composition
//
// Operators are functions of the shape `func(Source[T], ...Strategy) Source[R]`.
// [Pipe] threads a Source through a sequence of same-typed operators.
// Higher-order flattening ([concatall.ConcatAll], [mergeall.MergeAll],
// [switchall.SwitchAll], [exhaustall.ExhaustAll]) and the multi-consumer
// splitter ([tee.Tee]) live in their own packages; this package defines only
// the contract they all implement.
//
// # Concurrency
//
// Every operator runs its producer loop on a single goroutine, started
// lazily on the first call to NewReader on its output Source. Cancellation
// is context-based: a Reader's Cancel derives a [context.CancelCauseFunc],
// and upstream sources observe [context.Cause] to recover the reason. There
// is no requirement for multi-threaded safety within a single operator's
// producer loop; state mutated only within that goroutine needs no lock.
package pullstream
