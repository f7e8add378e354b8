package client

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxResponseSize bounds a single response.
const DefaultMaxResponseSize = 4 << 20

// DialFunc opens the connection for one call.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

type options struct {
	dial            DialFunc
	dialTimeout     time.Duration
	ioTimeout       time.Duration
	maxResponseSize int
	logger          *zap.Logger
}

func defaultOptions() options {
	return options{
		dial:            (&net.Dialer{}).DialContext,
		maxResponseSize: DefaultMaxResponseSize,
		logger:          zap.L(),
	}
}

type Option func(*options)

// WithDialer replaces the TCP dialer.
func WithDialer(dial DialFunc) Option {
	return func(o *options) {
		o.dial = dial
	}
}

// WithDialTimeout bounds connection setup, whichever dialer is in use. Zero keeps
// the default of no limit.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

// WithIOTimeout bounds the write and read of a call, measured from connect.
// Zero keeps the default of no limit.
func WithIOTimeout(d time.Duration) Option {
	return func(o *options) {
		o.ioTimeout = d
	}
}

// WithMaxResponseSize sets the largest response accepted.
func WithMaxResponseSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxResponseSize = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
