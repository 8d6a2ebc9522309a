package middlewares

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/conduit/internal"
	"github.com/dmitrymomot/conduit/pkg/logger"
)

type requestIDKey struct{}

// DefaultRequestIDHeaders are the headers checked (in order) for an existing request ID.
var DefaultRequestIDHeaders = []string{"X-Request-ID", "X-Correlation-ID"}

// RequestIDConfig configures the request ID middleware.
type RequestIDConfig struct {
	Generator      func() string
	ResponseHeader string
	Headers        []string
	// StoreKey also records the ID in the request store when not empty.
	StoreKey string
}

// RequestIDOption configures RequestIDConfig.
type RequestIDOption func(*RequestIDConfig)

// WithRequestIDHeaders sets the headers to check for existing request IDs.
func WithRequestIDHeaders(headers ...string) RequestIDOption {
	return func(cfg *RequestIDConfig) {
		cfg.Headers = headers
	}
}

// WithRequestIDGenerator sets a custom ID generator function.
func WithRequestIDGenerator(gen func() string) RequestIDOption {
	return func(cfg *RequestIDConfig) {
		if gen != nil {
			cfg.Generator = gen
		}
	}
}

// WithRequestIDResponseHeader sets the response header name.
func WithRequestIDResponseHeader(header string) RequestIDOption {
	return func(cfg *RequestIDConfig) {
		cfg.ResponseHeader = header
	}
}

// WithRequestIDStoreKey records the ID in the request store under key.
func WithRequestIDStoreKey(key string) RequestIDOption {
	return func(cfg *RequestIDConfig) {
		cfg.StoreKey = key
	}
}

// NewRequestID returns a time-ordered UUIDv7 string.
func NewRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// RequestID returns middleware that assigns an ID to each request. An ID
// found in the request headers is reused, otherwise one is generated.
// The ID is attached to the request context and echoed as a response header.
func RequestID(opts ...RequestIDOption) internal.Middleware {
	cfg := &RequestIDConfig{
		Headers:        DefaultRequestIDHeaders,
		Generator:      NewRequestID,
		ResponseHeader: "X-Request-ID",
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return internal.MiddlewareFunc(func(c internal.Context) {
		// First match wins so upstream tracing IDs survive.
		var reqID string
		for _, header := range cfg.Headers {
			if v := c.Header(header); v != "" {
				reqID = v
				break
			}
		}
		if reqID == "" {
			reqID = cfg.Generator()
		}

		c.SetValue(requestIDKey{}, reqID)
		if cfg.ResponseHeader != "" {
			c.SetHeader(cfg.ResponseHeader, reqID)
		}
		if cfg.StoreKey != "" {
			if err := c.Set(cfg.StoreKey, reqID); err != nil {
				c.LogWarn("failed to store request id", "error", err)
			}
		}
	})
}

// GetRequestID extracts the request ID from the context.
// Returns an empty string if no request ID is set.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// RequestIDExtractor returns a ContextExtractor for use with WithLogger.
// Automatically adds "request_id" to all log entries.
func RequestIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v := GetRequestID(ctx); v != "" {
			return slog.String("request_id", v), true
		}
		return slog.Attr{}, false
	}
}
