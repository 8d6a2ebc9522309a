package middlewares

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/conduit/internal"
)

type requestStartKey struct{}

// AccessLogger writes one log record per request. It is both a Middleware,
// which stamps the start time, and an Interpreter, which logs the final
// response. Register it in both places to get durations; requests that
// match no route are logged without one.
//
//	access := middlewares.AccessLog(logger)
//	app := conduit.New(
//	    conduit.WithMiddleware(access),
//	    conduit.WithInterpreters(access),
//	)
type AccessLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// AccessLog creates an AccessLogger. A nil logger falls back to the
// application logger of each request.
func AccessLog(logger *slog.Logger) *AccessLogger {
	return &AccessLogger{logger: logger, now: time.Now}
}

// Handle records the request start time.
func (l *AccessLogger) Handle(c internal.Context) {
	c.SetValue(requestStartKey{}, l.now())
}

// Interpret logs the request with its final status. Server errors are
// logged at error level, client errors at warn level.
func (l *AccessLogger) Interpret(c internal.Context) {
	logger := l.logger
	if logger == nil {
		logger = c.Logger()
	}

	req := c.Request()
	status := c.Response().Status()
	attrs := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Int("status", status),
		slog.Int("bytes", len(c.Response().Body())),
		slog.String("remote_ip", internal.ClientIP(req)),
	}
	if start, ok := c.Value(requestStartKey{}).(time.Time); ok {
		attrs = append(attrs, slog.Duration("duration", l.now().Sub(start)))
	}

	level := slog.LevelInfo
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status >= http.StatusBadRequest:
		level = slog.LevelWarn
	}
	logger.LogAttrs(context.Context(c), level, "request completed", attrs...)
}
