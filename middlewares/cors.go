package middlewares

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/conduit/internal"
)

// DefaultCORSMaxAge is how long browsers may cache a preflight answer
// unless CORSMaxAge says otherwise.
const DefaultCORSMaxAge = 12 * time.Hour

type corsConfig struct {
	origins     []string
	originFunc  func(origin string) bool
	methods     []string
	headers     []string
	expose      []string
	credentials bool
	maxAge      time.Duration
}

// CORSOption tunes the CORS middleware.
type CORSOption func(*corsConfig)

// CORSOrigins limits the accepted origins. "*" accepts any origin.
func CORSOrigins(origins ...string) CORSOption {
	return func(cfg *corsConfig) {
		cfg.origins = origins
	}
}

// CORSOriginFunc decides per origin and takes precedence over CORSOrigins.
func CORSOriginFunc(fn func(origin string) bool) CORSOption {
	return func(cfg *corsConfig) {
		cfg.originFunc = fn
	}
}

// CORSMethods sets Access-Control-Allow-Methods of preflight answers.
func CORSMethods(methods ...string) CORSOption {
	return func(cfg *corsConfig) {
		cfg.methods = methods
	}
}

// CORSHeaders sets Access-Control-Allow-Headers of preflight answers.
func CORSHeaders(headers ...string) CORSOption {
	return func(cfg *corsConfig) {
		cfg.headers = headers
	}
}

// CORSExpose sets Access-Control-Expose-Headers.
func CORSExpose(headers ...string) CORSOption {
	return func(cfg *corsConfig) {
		cfg.expose = headers
	}
}

// CORSCredentials sends Access-Control-Allow-Credentials. The request
// origin is then echoed even when "*" is configured.
func CORSCredentials() CORSOption {
	return func(cfg *corsConfig) {
		cfg.credentials = true
	}
}

// CORSMaxAge sets Access-Control-Max-Age. Zero omits the header.
func CORSMaxAge(d time.Duration) CORSOption {
	return func(cfg *corsConfig) {
		cfg.maxAge = d
	}
}

// CORS returns middleware that adds Cross-Origin Resource Sharing headers
// to matched requests. Preflight requests additionally get the allowed
// methods and headers and a 204 status.
//
// Middleware only runs on matched routes, so preflight requests need an
// OPTIONS route. Preflight answers every path:
//
//	app := conduit.New(conduit.WithMiddleware(middlewares.CORS()))
//	app.Route("*", http.MethodOptions, middlewares.Preflight)
func CORS(opts ...CORSOption) internal.Middleware {
	cfg := &corsConfig{
		origins: []string{"*"},
		methods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		headers: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		maxAge:  DefaultCORSMaxAge,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	allowMethods := strings.Join(cfg.methods, ", ")
	allowHeaders := strings.Join(cfg.headers, ", ")
	exposeHeaders := strings.Join(cfg.expose, ", ")
	maxAge := strconv.Itoa(int(cfg.maxAge.Seconds()))
	anyOrigin := slices.Contains(cfg.origins, "*")

	return internal.MiddlewareFunc(func(c internal.Context) {
		origin := c.Header("Origin")
		if origin == "" || !cfg.accepts(origin, anyOrigin) {
			return
		}

		headers := c.Response().Header()
		headers.Add("Vary", "Origin")

		// Credentials forbid the "*" origin.
		if cfg.credentials || !anyOrigin {
			headers.Set("Access-Control-Allow-Origin", origin)
		} else {
			headers.Set("Access-Control-Allow-Origin", "*")
		}
		if cfg.credentials {
			headers.Set("Access-Control-Allow-Credentials", "true")
		}
		if exposeHeaders != "" {
			headers.Set("Access-Control-Expose-Headers", exposeHeaders)
		}

		if c.Request().Method != http.MethodOptions || c.Header("Access-Control-Request-Method") == "" {
			return
		}

		headers.Add("Vary", "Access-Control-Request-Method")
		headers.Add("Vary", "Access-Control-Request-Headers")
		headers.Set("Access-Control-Allow-Methods", allowMethods)
		headers.Set("Access-Control-Allow-Headers", allowHeaders)
		if cfg.maxAge > 0 {
			headers.Set("Access-Control-Max-Age", maxAge)
		}
		c.SetStatus(http.StatusNoContent)
	})
}

// Preflight is an empty handler for OPTIONS routes. The status and headers
// are left to the CORS middleware.
func Preflight(internal.Context) (any, error) {
	return nil, nil
}

func (cfg *corsConfig) accepts(origin string, anyOrigin bool) bool {
	if cfg.originFunc != nil {
		return cfg.originFunc(origin)
	}
	return anyOrigin || slices.Contains(cfg.origins, origin)
}
