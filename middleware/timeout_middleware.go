package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/HUMBLE6666/rpc/service"
)

var ErrTimeout = errors.New("request timed out")

// TimeOutMiddleware rejects a call whose handler has not resolved done within
// timeout. The handler's context is cancelled at the same moment; a done resolved
// after the rejection must be ignored by the caller of this handler.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call, done service.Closure) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)

			finished := make(chan struct{})
			var once sync.Once
			wrapped := func() {
				once.Do(func() { close(finished) })
				cancel()
				done()
			}

			errc := make(chan error, 1)
			go func() {
				errc <- next(ctx, call, wrapped)
			}()

			for {
				select {
				case <-finished:
					return nil
				case err := <-errc:
					if err != nil {
						cancel()
						return err
					}
					// handler returned without error; done may still be pending
					errc = nil
				case <-ctx.Done():
					select {
					case <-finished:
						return nil
					default:
					}
					return ErrTimeout
				}
			}
		}
	}
}
