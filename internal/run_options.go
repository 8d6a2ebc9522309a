package internal

import (
	"context"
	"log/slog"
	"time"
)

// ServerConfig holds the TCP server settings. Field tags follow
// caarlos0/env, so it can be loaded with config.Load.
type ServerConfig struct {
	Addr              string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxHeaderBytes    int           `env:"HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`
	MaxBodyBytes      int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"10485760"`
}

// DefaultServerConfig returns the settings used when none are given.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              ":8080",
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		MaxHeaderBytes:    1 << 20,
		MaxBodyBytes:      DefaultMaxBodySize,
	}
}

// RunOption configures the server runtime.
type RunOption func(*runConfig)

// runConfig holds runtime configuration for the server.
type runConfig struct {
	logger        *slog.Logger
	baseCtx       context.Context
	server        ServerConfig
	bodyLimit     int64
	shutdownHooks []func(context.Context) error
}

// buildRunConfig creates a runConfig from the provided options.
func buildRunConfig(opts ...RunOption) *runConfig {
	cfg := &runConfig{server: DefaultServerConfig()}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Address sets the HTTP server address.
// Defaults to ":8080".
func Address(addr string) RunOption {
	return func(c *runConfig) {
		if addr != "" {
			c.server.Addr = addr
		}
	}
}

// Logger sets the runtime logger. Defaults to the application logger.
func Logger(l *slog.Logger) RunOption {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// ShutdownTimeout sets the timeout for graceful shutdown.
// This applies to both the HTTP server and shutdown hooks.
// Defaults to 30 seconds.
func ShutdownTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		if d > 0 {
			c.server.ShutdownTimeout = d
		}
	}
}

// ShutdownHook registers a cleanup function to run during shutdown.
// Hooks are called in the order they were registered.
// Each hook receives a context with the shutdown timeout.
//
// Example:
//
//	conduit.ShutdownHook(func(ctx context.Context) error {
//	    return redisClient.Close()
//	})
func ShutdownHook(fn func(context.Context) error) RunOption {
	return func(c *runConfig) {
		if fn != nil {
			c.shutdownHooks = append(c.shutdownHooks, fn)
		}
	}
}

// WithServerConfig replaces all server settings. Zero durations keep
// their defaults.
//
// Example:
//
//	cfg := config.MustLoad[conduit.ServerConfig]()
//	err := app.Listen("", conduit.WithServerConfig(cfg))
func WithServerConfig(sc ServerConfig) RunOption {
	return func(c *runConfig) {
		def := DefaultServerConfig()
		if sc.Addr == "" {
			sc.Addr = c.server.Addr
		}
		if sc.ReadTimeout <= 0 {
			sc.ReadTimeout = def.ReadTimeout
		}
		if sc.WriteTimeout <= 0 {
			sc.WriteTimeout = def.WriteTimeout
		}
		if sc.IdleTimeout <= 0 {
			sc.IdleTimeout = def.IdleTimeout
		}
		if sc.ReadHeaderTimeout <= 0 {
			sc.ReadHeaderTimeout = def.ReadHeaderTimeout
		}
		if sc.ShutdownTimeout <= 0 {
			sc.ShutdownTimeout = def.ShutdownTimeout
		}
		if sc.MaxHeaderBytes <= 0 {
			sc.MaxHeaderBytes = def.MaxHeaderBytes
		}
		c.server = sc
		c.bodyLimit = sc.MaxBodyBytes
	}
}

// WithContext sets a custom base context for signal handling.
// Useful for testing or when integrating with existing context hierarchies.
// Defaults to context.Background() if not set.
func WithContext(ctx context.Context) RunOption {
	return func(c *runConfig) {
		if ctx != nil {
			c.baseCtx = ctx
		}
	}
}
