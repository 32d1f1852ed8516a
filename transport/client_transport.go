// Package transport carries request bodies to a server over a framed TCP
// connection and routes the response bodies back to their callers.
//
// A ClientTransport multiplexes concurrent calls over one connection. Each
// request frame gets a sequence number and the caller waits on a channel
// registered under it; a single receive loop reads response frames and hands
// each body to the channel with the matching sequence:
//
//	goroutine-1 ──Send(seq=1)──┐
//	goroutine-2 ──Send(seq=2)──┼──→ one conn ──→ server
//	goroutine-3 ──Send(seq=3)──┘
//
//	recvLoop: ←── response(seq=2) → pending[2] → goroutine-2 wakes up
//
// The sequence number only pairs frames on one connection. Whether the body
// belongs to the call that sent it is decided one layer up, by the protocol
// definition and its correlation tag.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rest-rpc/codec"
	"rest-rpc/frame"
)

var ErrClosed = errors.New("transport: connection closed")

const DefaultHeartbeatInterval = 30 * time.Second

// Result is what a caller receives for one request: the response body, or the
// error that ended the connection before a response arrived.
type Result struct {
	Body []byte
	Err  error
}

type Options struct {
	// HeartbeatInterval between keepalive frames. Zero means
	// DefaultHeartbeatInterval, a negative value disables heartbeats.
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// ClientTransport manages a single multiplexed connection.
type ClientTransport struct {
	conn   net.Conn
	logger *zap.Logger

	sending sync.Mutex // serialises frame writes and guards seq and closed
	seq     uint32
	closed  bool

	pending sync.Map // uint32 -> chan Result

	done      chan struct{}
	closeOnce sync.Once
	group     *errgroup.Group
}

// NewClientTransport takes ownership of conn and starts the receive and
// heartbeat loops.
func NewClientTransport(conn net.Conn, opts Options) *ClientTransport {
	opts = opts.withDefaults()
	t := &ClientTransport{
		conn:   conn,
		logger: opts.Logger.With(zap.String("remote", conn.RemoteAddr().String())),
		done:   make(chan struct{}),
	}

	g, ctx := errgroup.WithContext(context.Background())
	t.group = g
	g.Go(t.recvLoop)
	if opts.HeartbeatInterval > 0 {
		g.Go(func() error {
			return t.heartbeatLoop(ctx, opts.HeartbeatInterval)
		})
	}
	return t
}

// Dial connects to addr and wraps the connection in a ClientTransport.
func Dial(ctx context.Context, addr string, opts Options) (*ClientTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return NewClientTransport(conn, opts), nil
}

// Send writes body as one request frame. The returned channel receives
// exactly one Result unless the sequence is forgotten first.
func (t *ClientTransport) Send(ct codec.CodecType, body []byte) (uint32, <-chan Result, error) {
	t.sending.Lock()
	defer t.sending.Unlock()

	if t.closed {
		return 0, nil, ErrClosed
	}
	t.seq++
	seq := t.seq

	// Registered before the write so a fast response cannot miss it.
	ch := make(chan Result, 1)
	t.pending.Store(seq, ch)

	h := &frame.Header{Codec: ct, Type: frame.MsgTypeRequest, Seq: seq}
	if err := frame.Encode(t.conn, h, body); err != nil {
		t.pending.Delete(seq)
		return 0, nil, fmt.Errorf("transport: write request: %w", err)
	}
	return seq, ch, nil
}

// Forget drops the pending entry for seq. A response arriving later is
// discarded. Callers use it when they stop waiting.
func (t *ClientTransport) Forget(seq uint32) {
	t.pending.Delete(seq)
}

// Closed reports whether the connection has been shut down.
func (t *ClientTransport) Closed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Close shuts the connection down and fails every pending call with
// ErrClosed. It waits for the background loops to exit.
func (t *ClientTransport) Close() error {
	t.fail(ErrClosed)
	if err := t.group.Wait(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, ErrClosed) {
		t.logger.Debug("transport loops exited", zap.Error(err))
	}
	return nil
}

func (t *ClientTransport) recvLoop() error {
	for {
		h, body, err := frame.Decode(t.conn)
		if err != nil {
			t.fail(err)
			return err
		}
		if h.Type != frame.MsgTypeResponse {
			continue
		}
		ch, ok := t.pending.LoadAndDelete(h.Seq)
		if !ok {
			t.logger.Debug("dropping response for unknown sequence", zap.Uint32("seq", h.Seq))
			continue
		}
		ch.(chan Result) <- Result{Body: body}
	}
}

func (t *ClientTransport) heartbeatLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.done:
			return nil
		case <-ticker.C:
		}

		t.sending.Lock()
		err := frame.Encode(t.conn, &frame.Header{Type: frame.MsgTypeHeartbeat}, nil)
		t.sending.Unlock()
		if err != nil {
			t.fail(err)
			return err
		}
	}
}

// fail closes the connection once and delivers an error to every caller
// still waiting.
func (t *ClientTransport) fail(cause error) {
	t.closeOnce.Do(func() {
		// Closing the conn first unblocks a writer holding the send lock.
		close(t.done)
		_ = t.conn.Close()

		t.sending.Lock()
		t.closed = true
		t.sending.Unlock()

		err := ErrClosed
		if !errors.Is(cause, ErrClosed) {
			err = fmt.Errorf("%w: %w", ErrClosed, cause)
			t.logger.Warn("connection lost", zap.Error(cause))
		}
		t.pending.Range(func(key, _ any) bool {
			if ch, ok := t.pending.LoadAndDelete(key); ok {
				ch.(chan Result) <- Result{Err: err}
			}
			return true
		})
	})
}
