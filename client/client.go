// Package client implements the calling side: Channel turns one method invocation
// into one framed request over one fresh connection.
//
//	Call → marshal request → protocol.Encode → discovery Lookup("/S/M")
//	     → dial "ip:port" → write frame → read until server closes → unmarshal response
//
// There is no pooling, no retry and, unless configured through options or the
// context, no timeout: a stalled peer blocks the caller.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/HUMBLE6666/rpc/discovery"
	"github.com/HUMBLE6666/rpc/message"
	"github.com/HUMBLE6666/rpc/protocol"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSerialize       = errors.New("serialize request")
	ErrLookup          = errors.New("lookup address")
	ErrAddressNotFound = errors.New("address not found")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrConnect         = errors.New("connect")
	ErrSend            = errors.New("send")
	ErrReceive         = errors.New("receive")
	ErrParse           = errors.New("parse response")
)

// CallError is returned for every failed Call. Err wraps one of the sentinel errors
// above, so errors.Is works on a CallError directly.
type CallError struct {
	Service string
	Method  string
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("rpc call %s.%s: %v", e.Service, e.Method, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Channel is safe for concurrent use; each Call owns its connection.
type Channel struct {
	discovery discovery.Client
	opts      options
	logger    *zap.Logger
}

// NewChannel creates a Channel resolving addresses through d. d must already be
// connected and stays owned by the caller.
func NewChannel(d discovery.Client, opts ...Option) *Channel {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Channel{
		discovery: d,
		opts:      o,
		logger:    o.logger.Named("channel"),
	}
}

// Call invokes serviceName.methodName with req and fills resp. resp is only
// meaningful when the returned error is nil.
func (c *Channel) Call(ctx context.Context, serviceName, methodName string, req, resp message.Message) error {
	fail := func(sentinel error, format string, args ...any) error {
		return &CallError{
			Service: serviceName,
			Method:  methodName,
			Err:     fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...),
		}
	}

	// Step 1: serialize the arguments
	args, err := req.Marshal()
	if err != nil {
		return fail(ErrSerialize, "%w", err)
	}

	// Step 2: header + frame
	header := &protocol.Header{
		ServiceName: serviceName,
		MethodName:  methodName,
		ArgsSize:    uint32(len(args)),
	}
	frame, err := protocol.Encode(header, args)
	if err != nil {
		return fail(ErrSerialize, "%w", err)
	}

	// Step 3: resolve the provider address, fresh on every call
	path := discovery.MethodPath(serviceName, methodName)
	value, found, err := c.discovery.Lookup(ctx, path)
	if err != nil {
		return fail(ErrLookup, "%w", err)
	}
	if !found {
		return fail(ErrAddressNotFound, "%s", path)
	}
	addr, err := parseAddress(value)
	if err != nil {
		return fail(ErrInvalidAddress, "%s=%q: %w", path, value, err)
	}

	callID := uuid.NewString()
	logger := c.logger.With(
		zap.String("call_id", callID),
		zap.String("service", serviceName),
		zap.String("method", methodName),
		zap.String("addr", addr),
	)
	logger.Debug("dialing", zap.Int("frame_bytes", len(frame)))

	// Step 4: one connection per call, closed on every path
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return fail(ErrConnect, "%s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := c.deadline(ctx); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fail(ErrConnect, "set deadline: %w", err)
		}
	}

	// Step 5: write the whole frame
	if _, err := conn.Write(frame); err != nil {
		return fail(ErrSend, "%w", err)
	}

	// Step 6: the response is the raw message, terminated by the server closing
	data, err := readResponse(conn, c.opts.maxResponseSize)
	if err != nil {
		return fail(ErrReceive, "%w", err)
	}
	logger.Debug("response received", zap.Int("bytes", len(data)))

	// Step 7: parse
	if err := resp.Unmarshal(data); err != nil {
		return fail(ErrParse, "%w", err)
	}
	return nil
}

func (c *Channel) dial(ctx context.Context, addr string) (net.Conn, error) {
	if c.opts.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.dialTimeout)
		defer cancel()
	}
	return c.opts.dial(ctx, "tcp", addr)
}

// deadline combines the context deadline with the configured I/O timeout,
// whichever comes first.
func (c *Channel) deadline(ctx context.Context) (time.Time, bool) {
	d, ok := ctx.Deadline()
	if c.opts.ioTimeout > 0 {
		t := time.Now().Add(c.opts.ioTimeout)
		if !ok || t.Before(d) {
			d, ok = t, true
		}
	}
	return d, ok
}

// readResponse reads until EOF. A response larger than limit is an error
// rather than being silently truncated.
func readResponse(r io.Reader, limit int) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(data) > limit {
		return nil, fmt.Errorf("response exceeds %d bytes", limit)
	}
	return data, nil
}

// parseAddress splits "host:port" at the first colon.
func parseAddress(value string) (string, error) {
	host, port, ok := strings.Cut(value, ":")
	if !ok {
		return "", errors.New("missing ':'")
	}
	if host == "" {
		return "", errors.New("empty host")
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", fmt.Errorf("bad port %q", port)
	}
	return net.JoinHostPort(host, port), nil
}
