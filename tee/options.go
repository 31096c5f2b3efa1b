package tee

import (
	pullstream "github.com/joeycumines/go-pullstream"
	"github.com/joeycumines/go-pullstream/telemetry"
)

// settings holds the resolved configuration for a single Tee call.
type settings struct {
	overflow Overflow
	strategy pullstream.Strategy
	observer telemetry.Observer
}

// Option configures Tee, following the functional-options pattern used
// throughout this module's configuration surfaces.
type Option interface {
	apply(*settings)
}

type optionFunc func(*settings)

func (f optionFunc) apply(s *settings) { f(s) }

// WithOverflow selects the branch-buffer-full policy. The default is Block.
func WithOverflow(o Overflow) Option {
	return optionFunc(func(s *settings) { s.overflow = o })
}

// WithStrategy sets the queuing strategy forwarded to every branch's
// Controller.
func WithStrategy(strategy pullstream.Strategy) Option {
	return optionFunc(func(s *settings) { s.strategy = strategy })
}

// WithObserver attaches a telemetry.Observer that's notified of overflow
// events. A nil Observer (the default) is a no-op.
func WithObserver(o telemetry.Observer) Option {
	return optionFunc(func(s *settings) { s.observer = o })
}

func resolve(opts []Option) settings {
	s := settings{overflow: Block}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(&s)
	}
	return s
}
