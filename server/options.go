package server

import (
	"time"

	"github.com/HUMBLE6666/rpc/discovery"
	"github.com/HUMBLE6666/rpc/protocol"
	"go.uber.org/zap"
)

// DefaultWorkers is the size of the connection worker pool.
const DefaultWorkers = 4

type options struct {
	ip            string
	port          int
	workers       int
	discovery     discovery.Client
	logger        *zap.Logger
	maxFrameSize  int
	readTimeout   time.Duration
	asyncDispatch bool
}

func defaultOptions() options {
	return options{
		workers:      DefaultWorkers,
		logger:       zap.L(),
		maxFrameSize: protocol.DefaultMaxFrameSize,
	}
}

type Option func(*options)

// WithAddress sets the listen address used by ListenAndServe and the IP that is
// advertised through discovery.
func WithAddress(ip string, port int) Option {
	return func(o *options) {
		o.ip = ip
		o.port = port
	}
}

func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithDiscovery advertises every registered method through d when serving starts.
// Without it the Provider serves but cannot be found by name.
func WithDiscovery(d discovery.Client) Option {
	return func(o *options) {
		o.discovery = d
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxFrameSize caps an incoming request frame.
func WithMaxFrameSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFrameSize = n
		}
	}
}

// WithReadTimeout bounds the wait for a request frame. Zero means no limit.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readTimeout = d
	}
}

// WithAsyncDispatch runs each handler on its own goroutine so that a worker is
// free again as soon as the request has been parsed.
func WithAsyncDispatch() Option {
	return func(o *options) {
		o.asyncDispatch = true
	}
}
