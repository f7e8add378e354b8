// Package service describes callable services and builds the dispatch table the
// Provider looks methods up in.
//
// A Service exposes its name and methods through a descriptor, hands out fresh
// request/response messages per method, and invokes a method by descriptor. There is
// no reflection: concrete services are assembled from Method values with New, Unary
// and Async, the way generated stubs would be.
package service

import (
	"context"

	"github.com/HUMBLE6666/rpc/message"
)

// Closure completes a call. The handler resolves it exactly once, synchronously or
// from another goroutine; resolving it serializes the response, writes it to the
// caller and closes the connection.
type Closure func()

// MethodDescriptor identifies one method of a service.
type MethodDescriptor struct {
	Service string
	Name    string
	Index   int // position in ServiceDescriptor.Methods
}

// FullName returns "Service.Method".
func (m *MethodDescriptor) FullName() string {
	return m.Service + "." + m.Name
}

// ServiceDescriptor lists a service's methods.
type ServiceDescriptor struct {
	Name    string
	Methods []*MethodDescriptor
}

// Service is the callable-service capability.
type Service interface {
	Descriptor() *ServiceDescriptor
	NewRequest(method *MethodDescriptor) message.Message
	NewResponse(method *MethodDescriptor) message.Message
	Invoke(ctx context.Context, method *MethodDescriptor, req, resp message.Message, done Closure)
}

// HandlerFunc is the body of an asynchronous method. It owns done.
type HandlerFunc func(ctx context.Context, req, resp message.Message, done Closure)

// Method is one entry of a service built with New.
type Method struct {
	Name        string
	NewRequest  func() message.Message
	NewResponse func() message.Message
	Handler     HandlerFunc
}

// Unary builds a method whose handler fills resp and returns; done is resolved
// right after it.
func Unary[Req, Resp message.Message](name string, newReq func() Req, newResp func() Resp, fn func(ctx context.Context, req Req, resp Resp)) Method {
	return Method{
		Name:        name,
		NewRequest:  func() message.Message { return newReq() },
		NewResponse: func() message.Message { return newResp() },
		Handler: func(ctx context.Context, req, resp message.Message, done Closure) {
			fn(ctx, req.(Req), resp.(Resp))
			done()
		},
	}
}

// Async builds a method whose handler resolves done itself, possibly later and
// from another goroutine.
func Async[Req, Resp message.Message](name string, newReq func() Req, newResp func() Resp, fn func(ctx context.Context, req Req, resp Resp, done Closure)) Method {
	return Method{
		Name:        name,
		NewRequest:  func() message.Message { return newReq() },
		NewResponse: func() message.Message { return newResp() },
		Handler: func(ctx context.Context, req, resp message.Message, done Closure) {
			fn(ctx, req.(Req), resp.(Resp), done)
		},
	}
}

type methodTable struct {
	desc    *ServiceDescriptor
	methods []Method
}

// New assembles a Service from its methods. Method order defines descriptor indexes.
func New(name string, methods ...Method) Service {
	s := &methodTable{
		desc:    &ServiceDescriptor{Name: name},
		methods: methods,
	}
	for i, m := range methods {
		s.desc.Methods = append(s.desc.Methods, &MethodDescriptor{
			Service: name,
			Name:    m.Name,
			Index:   i,
		})
	}
	return s
}

func (s *methodTable) Descriptor() *ServiceDescriptor {
	return s.desc
}

func (s *methodTable) NewRequest(method *MethodDescriptor) message.Message {
	return s.methods[method.Index].NewRequest()
}

func (s *methodTable) NewResponse(method *MethodDescriptor) message.Message {
	return s.methods[method.Index].NewResponse()
}

func (s *methodTable) Invoke(ctx context.Context, method *MethodDescriptor, req, resp message.Message, done Closure) {
	s.methods[method.Index].Handler(ctx, req, resp, done)
}
