package middlewares

import (
	"context"
	"time"

	"github.com/dmitrymomot/conduit/internal"
)

// DefaultTimeout is the default request timeout.
const DefaultTimeout = 30 * time.Second

// Timeout returns middleware that puts a deadline on the request context.
// Handlers observe it through the Context they receive; a handler that
// returns the context error is answered with 504 by the default error
// handler. The deadline is released once the response is final.
func Timeout(timeout time.Duration) internal.Middleware {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return internal.MiddlewareFunc(func(c internal.Context) {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		c.SetContext(ctx)
		c.Defer(func() {
			if ctx.Err() == context.DeadlineExceeded {
				c.LogWarn("request timeout", "timeout", timeout.String())
			}
			cancel()
		})
	})
}
