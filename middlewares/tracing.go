package middlewares

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/conduit/internal"
)

const tracerName = "github.com/dmitrymomot/conduit"

type tracingConfig struct {
	provider   trace.TracerProvider
	propagator propagation.TextMapPropagator
	headers    []string
}

// TracingOption configures the tracing middleware.
type TracingOption func(*tracingConfig)

// WithTracerProvider sets the tracer provider. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(cfg *tracingConfig) {
		if tp != nil {
			cfg.provider = tp
		}
	}
}

// WithPropagator sets the propagator used to read the parent span from
// request headers. Defaults to the global propagator.
func WithPropagator(p propagation.TextMapPropagator) TracingOption {
	return func(cfg *tracingConfig) {
		if p != nil {
			cfg.propagator = p
		}
	}
}

// WithTracedHeaders records the given request headers as span attributes.
func WithTracedHeaders(headers ...string) TracingOption {
	return func(cfg *tracingConfig) {
		cfg.headers = append(cfg.headers, headers...)
	}
}

// Tracing returns middleware that starts a server span per matched request.
// The span is named after the route pattern, carries the controller and
// handler names, and ends with the final status once the response is done.
//
//	app := conduit.New(
//	    conduit.WithMiddleware(middlewares.Tracing(middlewares.WithTracerProvider(tp))),
//	)
func Tracing(opts ...TracingOption) internal.Middleware {
	cfg := &tracingConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.provider == nil {
		cfg.provider = otel.GetTracerProvider()
	}
	if cfg.propagator == nil {
		cfg.propagator = otel.GetTextMapPropagator()
	}
	tracer := cfg.provider.Tracer(tracerName)

	return internal.MiddlewareFunc(func(c internal.Context) {
		req := c.Request()
		route := c.Route()

		parent := cfg.propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		ctx, span := tracer.Start(parent, req.Method+" "+route.Pattern, trace.WithSpanKind(trace.SpanKindServer))

		attrs := []attribute.KeyValue{
			attribute.String("http.method", req.Method),
			attribute.String("http.route", route.Pattern),
			attribute.String("url.path", req.URL.Path),
			attribute.String("conduit.controller", route.Controller),
			attribute.String("conduit.handler", route.Handler),
		}
		for _, h := range cfg.headers {
			if v := req.Header.Get(h); v != "" {
				attrs = append(attrs, attribute.String("http.request.header."+http.CanonicalHeaderKey(h), v))
			}
		}
		span.SetAttributes(attrs...)

		c.SetContext(ctx)
		c.Defer(func() {
			status := c.Response().Status()
			span.SetAttributes(attribute.Int("http.status_code", status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			span.End()
		})
	})
}
