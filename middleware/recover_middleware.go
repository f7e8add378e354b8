package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/HUMBLE6666/rpc/service"
)

var ErrPanic = errors.New("handler panicked")

// RecoverMiddleware turns a panic in a synchronous handler into ErrPanic.
// Panics raised in goroutines started by the handler are not covered.
func RecoverMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call, done service.Closure) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrPanic, r)
				}
			}()
			return next(ctx, call, done)
		}
	}
}
