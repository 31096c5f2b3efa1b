// Package grpcstream adapts a bidirectional gRPC stream client into a
// pullstream.Source, generalizing fangrpcstream.Stream's dual-goroutine
// send/receive design: the send side stays a directly-callable method (a
// gRPC stream's Send has no notion of backpressure worth modeling as a
// pullstream operator), while the receive side becomes a proper
// pullstream.Source[Resp], so consumers can pipe gRPC responses through any
// operator in this module.
package grpcstream

import (
	"context"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"

	pullstream "github.com/joeycumines/go-pullstream"
)

type (
	// Factory models a method to create a bidirectional gRPC stream client,
	// implemented by generated gRPC clients.
	Factory[T Client[Req, Resp], Req proto.Message, Resp proto.Message] func(ctx context.Context, opts ...grpc.CallOption) (T, error)

	// Client models a bidirectional gRPC stream client, implemented by
	// generated gRPC clients.
	Client[Req proto.Message, Resp proto.Message] interface {
		Send(Req) error
		Recv() (Resp, error)
		grpc.ClientStream
	}

	// Stream wraps a bidirectional gRPC stream client. Responses are
	// consumed via the pullstream.Source[Resp] returned by New, and requests
	// are sent via Send.
	Stream[T Client[Req, Resp], Req proto.Message, Resp proto.Message] struct {
		ctx    context.Context
		cancel context.CancelCauseFunc
		stream T
		ch     chan Req
		stop   chan struct{}

		mu   sync.Mutex
		err  error
		done chan struct{}
	}
)

// New opens a Stream over the client stream produced by factory, and
// returns a pullstream.Source[Resp] over its responses. Per this module's
// single-reader invariant, the Source's receive loop starts on the first
// (and only) NewReader call — not at New's return — so Send may be called
// before a reader is acquired, but the server-side will observe ordinary
// gRPC flow-control backpressure on its own sends until one is.
func New[T Client[Req, Resp], Req proto.Message, Resp proto.Message](
	ctx context.Context,
	factory Factory[T, Req, Resp],
	opts ...grpc.CallOption,
) (*Stream[T, Req, Resp], pullstream.Source[Resp], error) {
	ctx, cancel := context.WithCancelCause(ctx)

	var success bool
	defer func() {
		if !success {
			cancel(nil)
		}
	}()

	stream, err := factory(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}

	x := &Stream[T, Req, Resp]{
		ctx:    ctx,
		cancel: cancel,
		stream: stream,
		ch:     make(chan Req),
		stop:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	go x.sendLoop()
	go func() {
		<-x.ctx.Done()
		close(x.done)
	}()

	source := pullstream.New[Resp](x.receiveLoop)

	success = true
	return x, source, nil
}

func (x *Stream[T, Req, Resp]) sendLoop() {
	for {
		select {
		case <-x.ctx.Done():
			return

		case <-x.stop:
			if err := x.stream.CloseSend(); err != nil {
				x.fatalErr(err)
			}
			return

		case req := <-x.ch:
			if err := x.stream.Send(req); err != nil {
				x.fatalErr(err)
				return
			}
		}
	}
}

// receiveLoop is the pullstream.StartFunc driving the response Source: it
// is run on its own goroutine, started by that Source's first NewReader
// call, exactly as every other operator's producer loop in this module.
func (x *Stream[T, Req, Resp]) receiveLoop(ctx context.Context, ctrl *pullstream.Controller[Resp]) {
	// the blocking Recv below only reacts to x.ctx, but a reader can be
	// cancelled independently (e.g. the consuming operator unwinding): bridge
	// that cancellation through so Recv unblocks instead of leaking.
	go func() {
		select {
		case <-ctx.Done():
			x.cancel(context.Cause(ctx))
		case <-x.ctx.Done():
		}
	}()

	for {
		resp, err := x.stream.Recv()
		if err != nil {
			if err == io.EOF {
				ctrl.Close()
			} else if pullstream.IsCanceled(err) {
				// the context backing the gRPC stream was cancelled: treat
				// as a clean stop, matching Err()'s io.EOF handling.
				ctrl.Close()
			} else {
				ctrl.Error(err)
			}
			x.fatalErr(err)
			return
		}

		if err := ctrl.Enqueue(ctx, resp); err != nil {
			// downstream cancelled: stop receiving, but this isn't itself a
			// stream-level failure.
			x.cancel(nil)
			return
		}
	}
}

func (x *Stream[T, Req, Resp]) fatalErr(err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err != nil {
		return
	}
	x.cancel(err)
	if err != nil {
		x.err = err
	} else {
		x.err = context.Cause(x.ctx)
	}
}

// Done reports when the stream has reached a terminal state: a fatal
// send/receive error, or an explicit Close/Shutdown.
func (x *Stream[T, Req, Resp]) Done() <-chan struct{} {
	return x.done
}

// Err returns the terminal error, or nil for a clean EOF/cancellation.
func (x *Stream[T, Req, Resp]) Err() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err == io.EOF || pullstream.IsCanceled(x.err) {
		return nil
	}
	return x.err
}

// Send sends req, blocking until accepted by the send loop, ctx is done, or
// the stream is otherwise terminated.
func (x *Stream[T, Req, Resp]) Send(ctx context.Context, req Req) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-x.ctx.Done():
		return context.Cause(x.ctx)
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-x.ctx.Done():
		return context.Cause(x.ctx)
	case x.ch <- req:
		return nil
	}
}

// Shutdown asks the send loop to half-close the send side (CloseSend) and
// waits until Done is closed; if ctx is done first, the stream is cancelled
// with ctx's error and Shutdown still waits for Done. It does not wait for
// the send and receive loops themselves to return.
func (x *Stream[T, Req, Resp]) Shutdown(ctx context.Context) error {
	select {
	case x.stop <- struct{}{}:
	default:
	}

	select {
	case <-ctx.Done():
		x.cancel(ctx.Err())
		<-x.done
	case <-x.done:
	}
	return x.Err()
}

// Close cancels the stream immediately and waits until Done is closed. It
// does not wait for the send and receive loops themselves to return.
func (x *Stream[T, Req, Resp]) Close() error {
	x.cancel(nil)
	<-x.done
	return x.Err()
}
