// Package server implements the Provider: it hosts registered services, advertises
// their methods through discovery and answers exactly one call per connection.
//
// Request processing pipeline:
//
//	Accept conn → conns channel → worker (one of N) → handleConn
//	  → ReadFrame → Decode header → registry Lookup → NewRequest + Unmarshal → NewResponse
//	    → Middleware Chain → Service.Invoke(ctx, method, req, resp, done)
//	      → done: resp.Marshal → write raw bytes → close
//
// Any error before done is resolved abandons the call: nothing is written and the
// connection is reset, so the caller sees a receive failure.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HUMBLE6666/rpc/discovery"
	"github.com/HUMBLE6666/rpc/middleware"
	"github.com/HUMBLE6666/rpc/protocol"
	"github.com/HUMBLE6666/rpc/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrFrameDecode      = errors.New("frame decode")
	ErrRequestParse     = errors.New("request parse")
	ErrDiscoveryConnect = errors.New("discovery connect")
	ErrDiscoveryWrite   = errors.New("discovery write")
	ErrServing          = errors.New("provider already serving")
	ErrNotServing       = errors.New("provider not serving")
)

// Provider hosts services. Register them and add middleware first, then call
// ListenAndServe or Serve; the service table is frozen from then on.
type Provider struct {
	opts   options
	logger *zap.Logger

	mu          sync.Mutex
	builder     *service.Builder
	middlewares []middleware.Middleware
	listener    net.Listener
	advertised  []string          // ephemeral method paths written to discovery
	serveDone   chan struct{}     // closed when the accept loop has returned
	open        map[net.Conn]bool // accepted and not yet closed; true while awaiting the frame

	serving  atomic.Bool
	shutdown atomic.Bool // set before the listener is closed so Accept errors are expected

	registry *service.Registry
	handler  middleware.HandlerFunc
	conns    chan net.Conn
	inflight sync.WaitGroup // accepted connections not yet closed
}

func NewProvider(opts ...Option) *Provider {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Provider{
		opts:    o,
		logger:  o.logger.Named("provider"),
		builder: service.NewBuilder(),
		open:    make(map[net.Conn]bool),
	}
}

// Register adds a service. A service with a name already registered replaces it.
func (p *Provider) Register(svc service.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.serving.Load() {
		return ErrServing
	}
	replaced, err := p.builder.Register(svc)
	if err != nil {
		return err
	}
	desc := svc.Descriptor()
	if replaced {
		p.logger.Warn("service replaced", zap.String("service", desc.Name))
	}
	p.logger.Info("service registered",
		zap.String("service", desc.Name),
		zap.Int("methods", len(desc.Methods)),
	)
	return nil
}

// Use registers a middleware. Middlewares are applied in the order they are added.
func (p *Provider) Use(mw middleware.Middleware) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.serving.Load() {
		return ErrServing
	}
	p.middlewares = append(p.middlewares, mw)
	return nil
}

// ListenAndServe listens on the configured ip:port and serves on it.
func (p *Provider) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(p.opts.ip, strconv.Itoa(p.opts.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return p.Serve(ctx, ln)
}

// Serve advertises the registered methods and accepts connections on ln until
// Shutdown is called or ctx is cancelled. It returns nil after a shutdown.
func (p *Provider) Serve(ctx context.Context, ln net.Listener) error {
	p.mu.Lock()
	if !p.serving.CompareAndSwap(false, true) {
		p.mu.Unlock()
		ln.Close()
		return ErrServing
	}
	p.registry = p.builder.Build()
	p.handler = middleware.Chain(p.middlewares...)(middleware.Invoke)
	p.listener = ln
	p.serveDone = make(chan struct{})
	p.conns = make(chan net.Conn, p.opts.workers)
	p.mu.Unlock()
	defer close(p.serveDone)

	if err := p.advertise(ctx, ln.Addr()); err != nil {
		ln.Close()
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		p.beginShutdown()
		ln.Close()
	})
	defer stop()

	var workers sync.WaitGroup
	for i := 0; i < p.opts.workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for conn := range p.conns {
				p.handleConn(ctx, conn)
			}
		}()
	}
	defer func() {
		close(p.conns)
		workers.Wait()
	}()

	p.logger.Info("serving",
		zap.String("addr", ln.Addr().String()),
		zap.Int("workers", p.opts.workers),
		zap.Strings("services", p.registry.Services()),
	)

	for {
		conn, err := ln.Accept()
		if err != nil {
			// listener.Close() during shutdown makes Accept fail
			if p.shutdown.Load() {
				return nil
			}
			return err
		}
		p.inflight.Add(1)
		p.track(conn)
		p.conns <- conn
	}
}

// advertise writes "/S" (persistent) and "/S/M" → "ip:port" (ephemeral) for every
// registered method.
func (p *Provider) advertise(ctx context.Context, addr net.Addr) error {
	d := p.opts.discovery
	if d == nil {
		p.logger.Warn("no discovery client configured, methods are not advertised")
		return nil
	}
	if err := d.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrDiscoveryConnect, err)
	}

	value := []byte(p.advertiseAddr(addr))
	for _, name := range p.registry.Services() {
		if err := d.CreatePath(ctx, discovery.ServicePath(name), nil, false); err != nil {
			return fmt.Errorf("%w: %w", ErrDiscoveryWrite, err)
		}
		for _, method := range p.registry.Methods(name) {
			path := discovery.MethodPath(name, method)
			if err := d.CreatePath(ctx, path, value, true); err != nil {
				return fmt.Errorf("%w: %w", ErrDiscoveryWrite, err)
			}
			// recorded right away so Shutdown withdraws it even if a later write fails
			p.mu.Lock()
			p.advertised = append(p.advertised, path)
			p.mu.Unlock()
			p.logger.Info("method advertised", zap.String("path", path), zap.ByteString("addr", value))
		}
	}

	return nil
}

// advertiseAddr joins the configured IP with the port actually bound, so a
// listener on port 0 is advertised correctly.
func (p *Provider) advertiseAddr(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	if p.opts.ip != "" {
		host = p.opts.ip
	}
	return host + ":" + port
}

// handleConn serves the single call carried by conn. Exactly one of done or
// abandon closes the connection.
func (p *Provider) handleConn(ctx context.Context, conn net.Conn) {
	logger := p.logger.With(
		zap.String("conn_id", uuid.NewString()),
		zap.String("remote", conn.RemoteAddr().String()),
	)

	var once sync.Once
	abandon := func(err error) {
		once.Do(func() {
			logger.Warn("call abandoned", zap.Error(err))
			if tc, ok := conn.(*net.TCPConn); ok {
				// RST instead of FIN: the caller must not mistake this for an empty response
				tc.SetLinger(0)
			}
			conn.Close()
			p.untrack(conn)
			p.inflight.Done()
		})
	}

	p.armRead(conn)
	frame, err := protocol.ReadFrame(conn, p.opts.maxFrameSize)
	p.framed(conn)
	if err != nil {
		abandon(fmt.Errorf("%w: %w", ErrFrameDecode, err))
		return
	}
	header, args, err := protocol.Decode(frame)
	if err != nil {
		abandon(fmt.Errorf("%w: %w", ErrFrameDecode, err))
		return
	}
	logger = logger.With(
		zap.String("service", header.ServiceName),
		zap.String("method", header.MethodName),
	)

	svc, method, err := p.registry.Lookup(header.ServiceName, header.MethodName)
	if err != nil {
		abandon(err)
		return
	}

	req := svc.NewRequest(method)
	if err := req.Unmarshal(args); err != nil {
		abandon(fmt.Errorf("%w: %w", ErrRequestParse, err))
		return
	}
	resp := svc.NewResponse(method)

	call := &middleware.Call{
		ServiceName: header.ServiceName,
		MethodName:  header.MethodName,
		Service:     svc,
		Method:      method,
		Request:     req,
		Response:    resp,
	}
	done := func() {
		once.Do(func() {
			defer p.inflight.Done()
			defer p.untrack(conn)
			defer conn.Close()
			data, err := resp.Marshal()
			if err != nil {
				logger.Error("serialize response", zap.Error(err))
				return
			}
			if _, err := conn.Write(data); err != nil {
				logger.Warn("write response", zap.Error(err))
				return
			}
			logger.Debug("call completed", zap.Int("bytes", len(data)))
		})
	}

	dispatch := func() {
		if err := p.handler(ctx, call, done); err != nil {
			abandon(err)
		}
	}
	if p.opts.asyncDispatch {
		go dispatch()
		return
	}
	dispatch()
}

// Addr returns the listener address, or nil before serving.
func (p *Provider) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// Shutdown performs graceful shutdown:
//  1. Delete the advertised method paths (callers stop resolving this provider)
//  2. Set shutdown flag (so Accept error is recognized as intentional)
//  3. Close the listener (stop accepting new connections)
//  4. Wait for open calls to finish (with timeout)
func (p *Provider) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	ln, serveDone, paths := p.listener, p.serveDone, p.advertised
	p.advertised = nil
	p.mu.Unlock()
	if ln == nil {
		return ErrNotServing
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Step 1: withdraw from discovery first
	for _, path := range paths {
		if err := p.opts.discovery.Delete(ctx, path); err != nil {
			p.logger.Warn("withdraw method", zap.String("path", path), zap.Error(err))
		}
	}

	// Step 2 + 3: flag first, so Serve returns nil instead of the Accept error
	p.beginShutdown()
	ln.Close()

	// Step 4: no Add can race with Wait once the accept loop is gone
	select {
	case <-serveDone:
	case <-ctx.Done():
		p.closeOpen()
		return fmt.Errorf("timeout waiting for ongoing requests to finish")
	}
	finished := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		p.closeOpen()
		return fmt.Errorf("timeout waiting for ongoing requests to finish")
	}
}

func (p *Provider) track(conn net.Conn) {
	p.mu.Lock()
	p.open[conn] = true
	p.mu.Unlock()
}

func (p *Provider) untrack(conn net.Conn) {
	p.mu.Lock()
	delete(p.open, conn)
	p.mu.Unlock()
}

// armRead sets the read deadline for the frame. Once shutdown has begun a
// connection gets no more time to send it.
func (p *Provider) armRead(conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.shutdown.Load():
		conn.SetReadDeadline(time.Now())
	case p.opts.readTimeout > 0:
		conn.SetReadDeadline(time.Now().Add(p.opts.readTimeout))
	}
}

func (p *Provider) framed(conn net.Conn) {
	p.mu.Lock()
	if _, ok := p.open[conn]; ok {
		p.open[conn] = false
	}
	p.mu.Unlock()
}

// beginShutdown sets the shutdown flag and expires the read of every connection
// still waiting for its frame, so idle peers cannot hold a worker.
func (p *Provider) beginShutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdown.Store(true)
	for conn, awaiting := range p.open {
		if awaiting {
			conn.SetReadDeadline(time.Now())
		}
	}
}

// closeOpen drops every connection still open, calls in progress included.
func (p *Provider) closeOpen() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for conn := range p.open {
		conn.Close()
	}
}
