// Package server serves the endpoints of one service over framed TCP.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (one goroutine reads frames)
//	  → for each request: go handleRequest
//	    → decodeCall → middleware chain → dispatch (Invoker.Invoke) → envelope → write response
//
// A tagged request has its tag echoed verbatim in the response, so the
// caller's protocol definition can tell its own response from a stray one.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"rest-rpc/codec"
	"rest-rpc/frame"
	"rest-rpc/message"
	"rest-rpc/middleware"
	"rest-rpc/protocol"
	"rest-rpc/registry"
)

type Server struct {
	svc         *service
	logger      *zap.Logger
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc // built once in Serve

	registry registry.Registry
	instance registry.ServiceInstance // Addr is filled from the listener when empty
	ttl      int64

	// ctx is handed to handlers and cancelled once Shutdown is done waiting.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	shutdown bool
	// inflight counts requests and handlers detached from them. New requests
	// are added only under mu while !shutdown; detached handlers are added
	// while their request is still counted.
	inflight sync.WaitGroup
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRegistry announces the server under its service name once it starts
// serving, and withdraws it on Shutdown. ttl is in seconds.
func WithRegistry(reg registry.Registry, instance registry.ServiceInstance, ttl int64) Option {
	return func(s *Server) {
		s.registry = reg
		s.instance = instance
		s.ttl = ttl
	}
}

func NewServer(service string, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		svc:    newService(service),
		logger: zap.NewNop(),
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[net.Conn]struct{}),
	}
	s.ctx = middleware.WithDetached(ctx, &s.inflight)
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("service", service))
	return s
}

// Register adds an endpoint. Endpoint names are unique per server.
func (s *Server) Register(inv protocol.Invoker) error {
	return s.svc.register(inv)
}

// Endpoints returns the registered endpoint names in sorted order.
func (s *Server) Endpoints() []string {
	return s.svc.names()
}

// Use appends a middleware. Middlewares run in the order they were added,
// inside a recover guard. Use must be called before Serve.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown. It returns nil after a
// Shutdown and the accept error otherwise.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		_ = l.Close()
		return nil
	}
	s.listener = l
	if s.registry != nil && s.instance.Addr == "" {
		s.instance.Addr = l.Addr().String()
	}
	inst := s.instance
	s.mu.Unlock()

	mws := append([]middleware.Middleware{middleware.Recover(s.logger)}, s.middlewares...)
	s.handler = middleware.Chain(mws...)(s.svc.dispatch)

	if s.registry != nil {
		if err := s.registry.Register(s.ctx, s.svc.name, inst, s.ttl); err != nil {
			_ = l.Close()
			return fmt.Errorf("server: register %s: %w", s.svc.name, err)
		}
	}

	s.logger.Info("serving",
		zap.Stringer("addr", l.Addr()),
		zap.Strings("endpoints", s.svc.names()))

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.closing() {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		go s.handleConn(conn)
	}
}

// Addr is the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown withdraws the server from its registry, stops accepting, waits
// for in-flight requests until ctx is done and then closes every connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	addr := s.instance.Addr
	s.mu.Unlock()
	if s.registry != nil && addr != "" {
		if err := s.registry.Deregister(ctx, s.svc.name, addr); err != nil {
			s.logger.Warn("deregister", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.shutdown = true
	l := s.listener
	s.mu.Unlock()
	if l != nil {
		_ = l.Close()
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("server: waiting for in-flight requests: %w", ctx.Err())
	}

	s.cancel()
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	return err
}

func (s *Server) closing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// begin registers one in-flight request unless the server is shutting down.
func (s *Server) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.inflight.Add(1)
	return true
}

// handleConn reads frames sequentially and serves each request in its own
// goroutine. Responses on one connection share a write lock so their frames
// never interleave.
func (s *Server) handleConn(conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()

	log := s.logger.With(zap.Stringer("remote", conn.RemoteAddr()))
	writeMu := &sync.Mutex{}
	for {
		h, body, err := frame.Decode(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.closing() {
				log.Debug("connection closed", zap.Error(err))
			}
			return
		}
		switch h.Type {
		case frame.MsgTypeHeartbeat:
			continue
		case frame.MsgTypeRequest:
		default:
			log.Debug("ignoring frame", zap.Uint8("type", uint8(h.Type)))
			continue
		}
		if !s.begin() {
			return
		}
		go s.handleRequest(conn, writeMu, h, body, log)
	}
}

func (s *Server) handleRequest(conn net.Conn, writeMu *sync.Mutex, h *frame.Header, body []byte, log *zap.Logger) {
	defer s.inflight.Done()

	c, err := codec.GetCodec(h.Codec)
	if err != nil {
		log.Warn("unsupported codec", zap.Error(err))
		return
	}

	reply := s.serve(c, body)
	out, err := c.Encode(reply.Envelope())
	if err != nil {
		log.Error("encode response", zap.Error(err))
		fallback := message.Failed(message.CodeException, fmt.Sprintf("encode result: %v", err))
		fallback.Tag, fallback.Tagged = reply.Tag, reply.Tagged
		if out, err = c.Encode(fallback.Envelope()); err != nil {
			return
		}
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	resp := &frame.Header{Codec: h.Codec, Type: frame.MsgTypeResponse, Seq: h.Seq}
	if err := frame.Encode(conn, resp, out); err != nil {
		log.Debug("write response", zap.Error(err))
	}
}

// serve produces the reply for one request body, echoing the tag of tagged
// calls whatever the outcome.
func (s *Server) serve(c codec.Codec, body []byte) *message.Reply {
	call, reply := s.svc.decodeCall(c, body)
	if reply == nil {
		reply = s.handler(s.ctx, call)
		if reply == nil {
			reply = message.Failed(message.CodeException, "handler returned no reply")
		}
	}
	if call != nil && call.Tagged {
		reply.Tag, reply.Tagged = call.Tag, true
	}
	return reply
}
