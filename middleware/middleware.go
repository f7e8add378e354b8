// Package middleware wraps the Provider's dispatch step.
//
// A handler receives the call and the completion closure. Returning a non-nil error
// means the call was rejected: the Provider logs it and drops the connection without
// a response. Otherwise the handler (eventually) resolves done.
package middleware

import (
	"context"

	"github.com/HUMBLE6666/rpc/message"
	"github.com/HUMBLE6666/rpc/service"
)

// Call is one dispatch on the Provider.
type Call struct {
	ServiceName string
	MethodName  string
	Service     service.Service
	Method      *service.MethodDescriptor
	Request     message.Message
	Response    message.Message
}

type HandlerFunc func(ctx context.Context, call *Call, done service.Closure) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain 将多个中间件组合成一个中间件
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Invoke is the innermost handler: it hands the call to the service.
func Invoke(ctx context.Context, call *Call, done service.Closure) error {
	call.Service.Invoke(ctx, call.Method, call.Request, call.Response, done)
	return nil
}
