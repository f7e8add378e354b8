package middleware

import (
	"context"
	"time"

	"github.com/HUMBLE6666/rpc/service"
	"go.uber.org/zap"
)

// LoggingMiddleware logs each call when its response is completed, with the time
// from dispatch to completion, and logs rejections from inner handlers.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.L()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call, done service.Closure) error {
			start := time.Now()
			err := next(ctx, call, func() {
				logger.Info("call completed",
					zap.String("service", call.ServiceName),
					zap.String("method", call.MethodName),
					zap.Duration("duration", time.Since(start)),
				)
				done()
			})
			if err != nil {
				logger.Warn("call rejected",
					zap.String("service", call.ServiceName),
					zap.String("method", call.MethodName),
					zap.Duration("duration", time.Since(start)),
					zap.Error(err),
				)
			}
			return err
		}
	}
}
