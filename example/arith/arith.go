// Package arith is a small calculator service used by the demo binaries and the
// end-to-end tests. Its messages are encoded the way protoc would lay out
//
//	message Args  { int64 a = 1; int64 b = 2; }
//	message Reply { int64 result = 1; }
package arith

import (
	"context"
	"errors"

	"github.com/HUMBLE6666/rpc/client"
	"github.com/HUMBLE6666/rpc/service"
	"google.golang.org/protobuf/encoding/protowire"
)

const ServiceName = "Arith"

var errMalformed = errors.New("arith: malformed message")

type Args struct {
	A, B int64
}

func (m *Args) Marshal() ([]byte, error) {
	return appendInts(nil, m.A, m.B), nil
}

func (m *Args) Unmarshal(data []byte) error {
	*m = Args{}
	return consumeInts(data, &m.A, &m.B)
}

type Reply struct {
	Result int64
}

func (m *Reply) Marshal() ([]byte, error) {
	return appendInts(nil, m.Result), nil
}

func (m *Reply) Unmarshal(data []byte) error {
	*m = Reply{}
	return consumeInts(data, &m.Result)
}

// appendInts writes vals as varint fields 1..n, skipping zero values.
func appendInts(b []byte, vals ...int64) []byte {
	for i, v := range vals {
		if v == 0 {
			continue
		}
		b = protowire.AppendTag(b, protowire.Number(i+1), protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v))
	}
	return b
}

// consumeInts reads varint fields 1..len(dst) into dst and skips unknown fields.
func consumeInts(b []byte, dst ...*int64) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errMalformed
		}
		b = b[n:]
		if typ == protowire.VarintType && num >= 1 && int(num) <= len(dst) {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return errMalformed
			}
			*dst[num-1] = int64(v)
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return errMalformed
		}
		b = b[n:]
	}
	return nil
}

func newArgs() *Args   { return new(Args) }
func newReply() *Reply { return new(Reply) }

// NewService returns the Arith service. Add and Sub complete inline, Mul completes
// from its own goroutine.
func NewService() service.Service {
	return service.New(ServiceName,
		service.Unary("Add", newArgs, newReply, func(ctx context.Context, req *Args, resp *Reply) {
			resp.Result = req.A + req.B
		}),
		service.Unary("Sub", newArgs, newReply, func(ctx context.Context, req *Args, resp *Reply) {
			resp.Result = req.A - req.B
		}),
		service.Async("Mul", newArgs, newReply, func(ctx context.Context, req *Args, resp *Reply, done service.Closure) {
			go func() {
				resp.Result = req.A * req.B
				done()
			}()
		}),
	)
}

// Stub calls a remote Arith service through a Channel.
type Stub struct {
	ch *client.Channel
}

func NewStub(ch *client.Channel) *Stub {
	return &Stub{ch: ch}
}

func (s *Stub) Add(ctx context.Context, a, b int64) (int64, error) {
	return s.call(ctx, "Add", a, b)
}

func (s *Stub) Sub(ctx context.Context, a, b int64) (int64, error) {
	return s.call(ctx, "Sub", a, b)
}

func (s *Stub) Mul(ctx context.Context, a, b int64) (int64, error) {
	return s.call(ctx, "Mul", a, b)
}

func (s *Stub) call(ctx context.Context, method string, a, b int64) (int64, error) {
	reply := &Reply{}
	if err := s.ch.Call(ctx, ServiceName, method, &Args{A: a, B: b}, reply); err != nil {
		return 0, err
	}
	return reply.Result, nil
}
