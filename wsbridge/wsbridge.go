// Package wsbridge implements a bidirectional RPC-layer streaming bridge in
// place of an in-process worker/postMessage channel: per-stream registration
// by uuid.UUID, credit-based flow control (a pull-request grants N credits;
// the remote emits at most N chunks before waiting for more), transported as
// JSON frames over a single
// github.com/coder/websocket connection. Two peers each own a router table
// of stream IDs — there's no client/server distinction beyond who dialed.
package wsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	pullstream "github.com/joeycumines/go-pullstream"
)

// DefaultGrantSize is the number of chunks a single credit grant allows the
// remote peer to emit before it must wait for another.
const DefaultGrantSize = 16

// ErrClosed is returned by Send/Receive plumbing once the Bridge has been
// closed, locally or by a Read failure on the underlying connection.
var ErrClosed = errors.New("pullstream: wsbridge: bridge closed")

type frameType uint8

const (
	frameData frameType = iota
	frameCredit
	frameClose
	frameError
)

// frame is the wire envelope multiplexed over the websocket connection. One
// stream's data, credit grants, close, and error signals are all frames
// carrying the same Stream ID.
type frame struct {
	Type   frameType `json:"type"`
	Stream uuid.UUID `json:"stream"`
	Credit int       `json:"credit,omitempty"`
	Data   []byte    `json:"data,omitempty"`
	Err    string    `json:"err,omitempty"`
}

type inboundMsg struct {
	data   []byte
	closed bool
	err    error
}

// outboundCredit tracks the credit balance a remote peer has granted for one
// outbound stream, waking the sender whenever it grows from zero.
type outboundCredit struct {
	mu     sync.Mutex
	credit int
	wake   chan struct{}
}

func newOutboundCredit() *outboundCredit {
	return &outboundCredit{wake: make(chan struct{}, 1)}
}

func (o *outboundCredit) add(n int) {
	o.mu.Lock()
	o.credit += n
	o.mu.Unlock()
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *outboundCredit) take() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.credit > 0 {
		o.credit--
		return true
	}
	return false
}

// Bridge multiplexes any number of []byte streams, in either direction, over
// a single websocket connection. Call Receive to expose a remote-originated
// stream as a pullstream.Source, and Send to drain a local Source onto the
// connection under the remote's credit grants.
type Bridge struct {
	conn *websocket.Conn

	ctx    context.Context
	cancel context.CancelCauseFunc

	grantSize int

	writeMu sync.Mutex

	mu       sync.Mutex
	inbound  map[uuid.UUID]chan inboundMsg
	outbound map[uuid.UUID]*outboundCredit

	closed    chan struct{}
	closeOnce sync.Once
}

// Option configures New, following the functional-options pattern used
// throughout this module.
type Option interface{ apply(*Bridge) }

type optionFunc func(*Bridge)

func (f optionFunc) apply(b *Bridge) { f(b) }

// WithGrantSize overrides DefaultGrantSize.
func WithGrantSize(n int) Option {
	return optionFunc(func(b *Bridge) {
		if n > 0 {
			b.grantSize = n
		}
	})
}

// New wraps conn, starting the demultiplexing read loop immediately: unlike
// a pullstream.Source, a Bridge has no single designated consumer, so there
// is no lazy-start contract to honor here.
func New(ctx context.Context, conn *websocket.Conn, opts ...Option) *Bridge {
	ctx, cancel := context.WithCancelCause(ctx)
	b := &Bridge{
		conn:      conn,
		ctx:       ctx,
		cancel:    cancel,
		grantSize: DefaultGrantSize,
		inbound:   make(map[uuid.UUID]chan inboundMsg),
		outbound:  make(map[uuid.UUID]*outboundCredit),
		closed:    make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(b)
		}
	}
	go b.readLoop()
	return b
}

// NewStreamID mints an opaque stream identifier, to be communicated to the
// remote peer out-of-band (e.g. as part of whatever application message
// establishes a logical stream).
func NewStreamID() uuid.UUID { return uuid.New() }

// Close tears down the bridge: every registered Receive Source errors with
// ErrClosed, a Send waiting for credit returns ErrClosed (a Send busy
// reading its source or writing a frame returns that step's error), and the
// underlying connection is closed.
func (b *Bridge) Close() error {
	b.fail(ErrClosed)
	return b.conn.Close(websocket.StatusNormalClosure, "bridge closed")
}

// Done reports when the bridge has torn down, locally or due to a
// connection-level read failure.
func (b *Bridge) Done() <-chan struct{} { return b.closed }

func (b *Bridge) fail(err error) {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		inbounds := make([]chan inboundMsg, 0, len(b.inbound))
		for _, in := range b.inbound {
			inbounds = append(inbounds, in)
		}
		b.mu.Unlock()

		b.cancel(err)
		close(b.closed)

		for _, in := range inbounds {
			select {
			case in <- inboundMsg{err: err}:
			default:
			}
		}
	})
}

func (b *Bridge) readLoop() {
	for {
		_, data, err := b.conn.Read(b.ctx)
		if err != nil {
			b.fail(err)
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			b.fail(fmt.Errorf("pullstream: wsbridge: decoding frame: %w", err))
			return
		}

		switch f.Type {
		case frameData:
			b.dispatch(f.Stream, inboundMsg{data: f.Data})
		case frameClose:
			b.dispatch(f.Stream, inboundMsg{closed: true})
		case frameError:
			b.dispatch(f.Stream, inboundMsg{err: errors.New(f.Err)})
		case frameCredit:
			b.mu.Lock()
			oc := b.outbound[f.Stream]
			b.mu.Unlock()
			if oc != nil {
				oc.add(f.Credit)
			}
		}
	}
}

// dispatch routes an inbound frame to its registered Receive stream, if
// any. Frames for IDs no longer (or never) registered are dropped: per the
// credit protocol, the remote only emits frameData after we've granted
// credit, which only happens once Receive has registered that ID.
func (b *Bridge) dispatch(id uuid.UUID, msg inboundMsg) {
	b.mu.Lock()
	in, ok := b.inbound[id]
	b.mu.Unlock()
	if !ok {
		return
	}
	select {
	case in <- msg:
	case <-b.closed:
	}
}

func (b *Bridge) sendFrame(f frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.conn.Write(b.ctx, websocket.MessageText, payload)
}

// Receive exposes the remote-originated stream id as a pullstream.Source:
// as the returned Source's consumer pulls, this side grants the remote
// credit proportional to demand, and enqueues the frameData chunks that
// credit buys.
func (b *Bridge) Receive(id uuid.UUID) pullstream.Source[[]byte] {
	return pullstream.New[[]byte](func(ctx context.Context, ctrl *pullstream.Controller[[]byte]) {
		in := make(chan inboundMsg, 1)
		b.mu.Lock()
		b.inbound[id] = in
		b.mu.Unlock()
		defer func() {
			b.mu.Lock()
			delete(b.inbound, id)
			b.mu.Unlock()
		}()

		granted := 0
		for {
			if granted <= 0 && ctrl.DesiredSize() > 0 {
				if err := b.sendFrame(frame{Type: frameCredit, Stream: id, Credit: b.grantSize}); err != nil {
					ctrl.Error(err)
					return
				}
				granted = b.grantSize
			}

			select {
			case <-ctrl.Changed():
			case msg, ok := <-in:
				if !ok {
					return
				}
				switch {
				case msg.err != nil:
					ctrl.Error(msg.err)
					return
				case msg.closed:
					ctrl.Close()
					return
				default:
					granted--
					if err := ctrl.Enqueue(ctx, msg.data); err != nil {
						return
					}
				}
			case <-ctx.Done():
				return
			case <-b.closed:
				ctrl.Error(context.Cause(b.ctx))
				return
			}
		}
	})
}

// Send drains source onto the wire as stream id, blocking as needed on
// credit grants from the remote peer's Receive(id) side. It returns when
// source closes (having sent a frameClose), source errors (having sent a
// frameError), or ctx/the Bridge is done.
func (b *Bridge) Send(ctx context.Context, id uuid.UUID, source pullstream.Source[[]byte]) error {
	oc := newOutboundCredit()
	b.mu.Lock()
	b.outbound[id] = oc
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.outbound, id)
		b.mu.Unlock()
	}()

	reader, err := source.NewReader()
	if err != nil {
		return err
	}
	defer reader.Release()

	for {
		for !oc.take() {
			select {
			case <-oc.wake:
			case <-ctx.Done():
				return ctx.Err()
			case <-b.closed:
				return ErrClosed
			}
		}

		v, ok, rerr := reader.Read(ctx)
		if rerr != nil {
			_ = b.sendFrame(frame{Type: frameError, Stream: id, Err: rerr.Error()})
			return rerr
		}
		if !ok {
			return b.sendFrame(frame{Type: frameClose, Stream: id})
		}
		if err := b.sendFrame(frame{Type: frameData, Stream: id, Data: v}); err != nil {
			return err
		}
	}
}
