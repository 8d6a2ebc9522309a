package internal

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// Transport is a network server that serves connections from a listener
// until it is shut down.
type Transport interface {
	Serve(ln net.Listener) error
	Shutdown(ctx context.Context) error
}

// Listen starts the standard TCP server and blocks until shutdown. The
// server stops gracefully on SIGINT, SIGTERM or cancellation of the base
// context, then runs the shutdown hooks. Configuration errors abort startup.
//
// Example:
//
//	err := app.Listen(":8080", conduit.ShutdownHook(closeDB))
func (a *App) Listen(addr string, opts ...RunOption) error {
	return a.Serve(func(sc ServerConfig) Transport {
		return newHTTPServer(a.Handler(), sc)
	}, append([]RunOption{Address(addr)}, opts...)...)
}

// Serve runs the transport returned by build with the lifecycle of Listen.
// Alternative transports such as fasthttp use it.
func (a *App) Serve(build func(ServerConfig) Transport, opts ...RunOption) error {
	cfg := buildRunConfig(opts...)
	if cfg.logger == nil {
		cfg.logger = a.env.logger
	}
	if err := a.Build(); err != nil {
		return err
	}
	if cfg.bodyLimit > 0 {
		a.maxBodySize = cfg.bodyLimit
	}
	return runServer(build(cfg.server), cfg)
}

// Server builds the http.Server Listen would run, without starting it.
func (a *App) Server(opts ...RunOption) *http.Server {
	cfg := buildRunConfig(opts...)
	return newHTTPServer(a.Handler(), cfg.server)
}

func newHTTPServer(h http.Handler, sc ServerConfig) *http.Server {
	return &http.Server{
		Addr:              sc.Addr,
		Handler:           h,
		ReadTimeout:       sc.ReadTimeout,
		WriteTimeout:      sc.WriteTimeout,
		IdleTimeout:       sc.IdleTimeout,
		ReadHeaderTimeout: sc.ReadHeaderTimeout,
		MaxHeaderBytes:    sc.MaxHeaderBytes,
	}
}

// runServer serves t and blocks until shutdown.
func runServer(t Transport, cfg *runConfig) error {
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// Create signal-aware context
	baseCtx := cfg.baseCtx
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(baseCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Listen first to get actual address
	ln, err := net.Listen("tcp", cfg.server.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := t.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.server.ShutdownTimeout)
	defer shutdownCancel()

	var errs []error

	// 1. Stop the transport
	if err := t.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	// 2. Run shutdown hooks
	for _, hook := range cfg.shutdownHooks {
		if err := hook(shutdownCtx); err != nil {
			errs = append(errs, err)
			logger.Error("shutdown hook failed", slog.Any("error", err))
		}
	}

	if len(errs) > 0 {
		logger.Error("shutdown completed with errors")
		return errors.Join(errs...)
	}

	logger.Info("shutdown completed")
	return nil
}
