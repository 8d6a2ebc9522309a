package internal

import (
	"log/slog"
	"net/http"
	"reflect"

	"github.com/dmitrymomot/conduit/pkg/codec"
	"github.com/dmitrymomot/conduit/pkg/health"
	"github.com/dmitrymomot/conduit/pkg/logger"
	"github.com/dmitrymomot/conduit/pkg/validator"
)

// Option configures the application.
type Option func(*App)

// WithMiddleware adds global middleware to the application.
// Middleware is applied in the order provided.
func WithMiddleware(mw ...Middleware) Option {
	return func(a *App) {
		a.Use(mw...)
	}
}

// WithInterpreters adds response interpreters.
func WithInterpreters(in ...Interpreter) Option {
	return func(a *App) {
		a.UseInterpreter(in...)
	}
}

// WithControllers mounts controllers in the order provided.
func WithControllers(ctls ...*Controller) Option {
	return func(a *App) {
		a.Mount(ctls...)
	}
}

// WithModule imports a module tree.
func WithModule(m *Module) Option {
	return func(a *App) {
		a.Import(m)
	}
}

// WithState installs the application state.
func WithState(state any) Option {
	return func(a *App) {
		a.SetState(state)
	}
}

// WithTransformer registers a transformer for handler arguments of type T.
//
// Example:
//
//	conduit.WithTransformer(func(c conduit.Context) (*User, error) {
//	    return users.FromToken(c, c.Header("Authorization"))
//	})
func WithTransformer[T any](fn func(c Context) (T, error)) Option {
	return func(a *App) {
		RegisterTransformer(a.env.transformers, fn)
	}
}

// WithTransformerFor registers an untyped transformer for t.
func WithTransformerFor(t reflect.Type, fn Transformer) Option {
	return func(a *App) {
		a.env.transformers.Register(t, fn)
	}
}

// WithValidator replaces the validator used by Bind and Dto.
func WithValidator(v *validator.Validator) Option {
	return func(a *App) {
		if v != nil {
			a.env.validator = v
		}
	}
}

// WithCodecs replaces the body codec registry.
func WithCodecs(r *codec.Registry) Option {
	return func(a *App) {
		if r != nil {
			a.env.codecs = r
		}
	}
}

// WithErrorHandler sets a custom error handler for handler errors and
// recovered panics.
//
// Example:
//
//	conduit.WithErrorHandler(func(c conduit.Context, err error) {
//	    _ = c.JSON(http.StatusInternalServerError, map[string]string{
//	        "error": err.Error(),
//	    })
//	})
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *App) {
		a.env.errorHandler = h
	}
}

// WithMaxBodySize limits the buffered request body. Larger bodies are
// answered with 413 before routing. Zero or less disables the limit.
func WithMaxBodySize(n int64) Option {
	return func(a *App) {
		a.maxBodySize = n
	}
}

// WithLogger creates a logger with a component name and optional extractors.
// The component name is added to every log entry for easy filtering.
// Extractors pull values from context (e.g., request_id, route).
//
// Example:
//
//	conduit.New(
//	    conduit.WithLogger("api", middlewares.RequestIDExtractor(), conduit.RouteExtractor()),
//	)
func WithLogger(component string, extractors ...logger.ContextExtractor) Option {
	return func(a *App) {
		a.env.logger = logger.New(extractors...).With("component", component)
	}
}

// WithCustomLogger sets a fully custom logger.
func WithCustomLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.env.logger = l
		}
	}
}

// WithMetricsEndpoint serves h at path outside the pipeline.
//
// Example:
//
//	conduit.WithMetricsEndpoint("/metrics", metrics.Handler(reg))
func WithMetricsEndpoint(path string, h http.Handler) Option {
	return func(a *App) {
		if path != "" && h != nil {
			a.metricsPath = path
			a.metrics = h
		}
	}
}

// healthConfig holds health check endpoint configuration.
type healthConfig struct {
	checks        health.Checks
	livenessPath  string
	readinessPath string
}

// Default health check paths.
const (
	defaultLivenessPath  = "/health/live"
	defaultReadinessPath = "/health/ready"
)

// HealthOption configures health check endpoints.
type HealthOption func(*healthConfig)

// WithLivenessPath sets a custom liveness endpoint path.
// Defaults to "/health/live".
func WithLivenessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.livenessPath = path
		}
	}
}

// WithReadinessPath sets a custom readiness endpoint path.
// Defaults to "/health/ready".
func WithReadinessPath(path string) HealthOption {
	return func(c *healthConfig) {
		if path != "" {
			c.readinessPath = path
		}
	}
}

// WithReadinessCheck adds a named readiness check.
//
// Example:
//
//	conduit.WithReadinessCheck("redis", broadcast.RedisHealthcheck(client))
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return func(c *healthConfig) {
		if c.checks == nil {
			c.checks = make(health.Checks)
		}
		c.checks[name] = fn
	}
}

// WithHealthChecks enables liveness and readiness endpoints on App.Handler.
// They are served outside the pipeline.
func WithHealthChecks(opts ...HealthOption) Option {
	return func(a *App) {
		cfg := &healthConfig{
			livenessPath:  defaultLivenessPath,
			readinessPath: defaultReadinessPath,
			checks:        make(health.Checks),
		}
		for _, opt := range opts {
			opt(cfg)
		}
		a.health = cfg
	}
}
