package mergeall

import (
	"math"

	pullstream "github.com/joeycumines/go-pullstream"
	"github.com/joeycumines/go-pullstream/telemetry"
)

// unset marks a settings.concurrency that no WithConcurrency option ever
// touched, distinct from Unbounded (which a caller can still pass
// explicitly via WithConcurrency(Unbounded)). Both resolve to unlimited
// concurrency; the distinction only matters for telling "omitted" apart
// from "explicitly non-positive," which must be rejected.
const unset = math.MinInt

// settings holds the resolved configuration for a single MergeAll call.
type settings struct {
	concurrency int
	strategy    pullstream.Strategy
	observer    telemetry.Observer
}

// Option configures MergeAll, following the functional-options pattern used
// throughout this module's configuration surfaces.
type Option interface {
	apply(*settings)
}

type optionFunc func(*settings)

func (f optionFunc) apply(s *settings) { f(s) }

// WithConcurrency caps the number of inner sources read concurrently. n must
// be positive, or the Unbounded sentinel for explicitly unlimited
// concurrency; any other non-positive value is rejected by MergeAll. The
// default, with no WithConcurrency option, is also Unbounded.
func WithConcurrency(n int) Option {
	return optionFunc(func(s *settings) { s.concurrency = n })
}

// WithStrategy sets the queuing strategy forwarded to the flattened output's
// Controller.
func WithStrategy(strategy pullstream.Strategy) Option {
	return optionFunc(func(s *settings) { s.strategy = strategy })
}

// WithObserver attaches a telemetry.Observer notified as inner sources start
// and complete. A nil Observer (the default) is a no-op.
func WithObserver(o telemetry.Observer) Option {
	return optionFunc(func(s *settings) { s.observer = o })
}

func resolve(opts []Option) settings {
	s := settings{concurrency: unset}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(&s)
	}
	return s
}
