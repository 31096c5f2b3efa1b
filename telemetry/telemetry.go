// Package telemetry provides the optional, cooperative observation hook the
// spec's Design Notes call for ("no scheduler abstraction other than a
// cooperative hook"): an Observer records queue depth, overflow events, and
// active-inner counts without ever influencing control flow. Grounded on
// seuros-gopher-cypher/src/driver/observability.go's instrumentation-bundle
// pattern (a struct of otel instruments, initialized once, recording
// is a no-op when metrics are disabled).
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Observer is attached, optionally, through tee.WithObserver and
// mergeall.WithObserver. A
// nil Observer costs nothing: every call site in this module nil-checks
// before invoking it.
type Observer interface {
	// QueueDepth reports a branch or inner's current buffered chunk count.
	QueueDepth(component string, label string, depth int)
	// Overflow reports a tee branch overflow event.
	Overflow(branch int, policy string)
	// ActiveInner reports a change (+1 on inner start, -1 on inner
	// completion) in the count of concurrently-draining inner sources in a
	// flattening operator.
	ActiveInner(component string, delta int)
}

const (
	instrumentationName    = "github.com/joeycumines/go-pullstream"
	instrumentationVersion = "0.1.0"
)

// otelObserver is an Observer backed by OpenTelemetry metric instruments.
type otelObserver struct {
	meter       metric.Meter
	queueDepth  metric.Int64Gauge
	overflow    metric.Int64Counter
	activeInner metric.Int64UpDownCounter
}

// NewOTelObserver builds an Observer that records to the global OpenTelemetry
// MeterProvider. Instrument-creation failures are reported via otel.Handle
// and degrade that instrument to a no-op, matching the observability.go
// pattern this is grounded on.
func NewOTelObserver() Observer {
	meter := otel.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))
	o := &otelObserver{meter: meter}

	var err error
	o.queueDepth, err = meter.Int64Gauge(
		"pullstream.queue.depth",
		metric.WithDescription("Buffered chunk count for a tee branch or flattening-operator inner"),
	)
	if err != nil {
		otel.Handle(err)
	}

	o.overflow, err = meter.Int64Counter(
		"pullstream.tee.overflow",
		metric.WithDescription("Number of tee branch overflow events"),
	)
	if err != nil {
		otel.Handle(err)
	}

	o.activeInner, err = meter.Int64UpDownCounter(
		"pullstream.flatten.active_inner",
		metric.WithDescription("Number of concurrently-draining inner sources in a flattening operator"),
	)
	if err != nil {
		otel.Handle(err)
	}

	return o
}

func (o *otelObserver) QueueDepth(component string, label string, depth int) {
	if o.queueDepth == nil {
		return
	}
	o.queueDepth.Record(context.Background(), int64(depth),
		metric.WithAttributes(
			attribute.String("pullstream.component", component),
			attribute.String("pullstream.label", label),
		))
}

func (o *otelObserver) Overflow(branch int, policy string) {
	if o.overflow == nil {
		return
	}
	o.overflow.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.Int("pullstream.branch", branch),
			attribute.String("pullstream.overflow_policy", policy),
		))
}

func (o *otelObserver) ActiveInner(component string, delta int) {
	if o.activeInner == nil {
		return
	}
	o.activeInner.Add(context.Background(), int64(delta),
		metric.WithAttributes(attribute.String("pullstream.component", component)))
}
