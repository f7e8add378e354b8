package middleware

import (
	"context"
	"errors"

	"github.com/HUMBLE6666/rpc/service"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitMiddleware 创建一个基于令牌桶算法的限流中间件
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call, done service.Closure) error {
			if !limiter.Allow() {
				return ErrRateLimited
			}
			return next(ctx, call, done)
		}
	}
}
