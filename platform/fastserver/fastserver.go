// Package fastserver serves a Conduit application with fasthttp.
//
// The server converts each fasthttp request into an *http.Request, runs it
// through App.Respond and copies the buffered response back. Plain
// http.Handlers, such as a metrics endpoint, can be mounted on exact paths
// next to the pipeline.
//
//	srv := fastserver.New(app, fastserver.Mount("/metrics", collector.Handler()))
//	if err := srv.Listen(":8080"); err != nil {
//	    log.Fatal(err)
//	}
package fastserver

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/dmitrymomot/conduit/internal"
)

// Server adapts an App to fasthttp.
type Server struct {
	app    *internal.App
	mounts map[string]fasthttp.RequestHandler
	logger *slog.Logger

	base   context.Context
	cancel context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// Mount serves h on path, outside the pipeline.
func Mount(path string, h http.Handler) Option {
	return func(s *Server) {
		s.mounts[path] = fasthttpadaptor.NewFastHTTPHandler(h)
	}
}

// WithLogger sets the logger. It defaults to the application logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a fasthttp adapter for app.
func New(app *internal.App, opts ...Option) *Server {
	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		app:    app,
		mounts: make(map[string]fasthttp.RequestHandler),
		logger: app.Logger(),
		base:   base,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the fasthttp request handler.
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.serve
}

// Listen serves on addr with the lifecycle of App.Listen.
func (s *Server) Listen(addr string, opts ...internal.RunOption) error {
	return s.app.Serve(s.transport, append([]internal.RunOption{internal.Address(addr)}, opts...)...)
}

func (s *Server) transport(sc internal.ServerConfig) internal.Transport {
	return &transport{
		owner: s,
		srv: &fasthttp.Server{
			Handler:              s.serve,
			Name:                 "conduit",
			ReadTimeout:          sc.ReadTimeout,
			WriteTimeout:         sc.WriteTimeout,
			IdleTimeout:          sc.IdleTimeout,
			MaxRequestBodySize:   int(sc.MaxBodyBytes),
			NoDefaultContentType: true,
			Logger:               fasthttpLogger{s.logger},
		},
	}
}

func (s *Server) serve(ctx *fasthttp.RequestCtx) {
	if h, ok := s.mounts[string(ctx.Path())]; ok {
		h(ctx)
		return
	}

	req, err := s.toRequest(ctx)
	if err != nil {
		s.logger.Warn("failed to convert fasthttp request", slog.Any("error", err))
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}

	resp := s.app.Respond(req)

	ctx.SetStatusCode(resp.Status())
	for k, vs := range resp.Header() {
		if k == "Content-Length" {
			continue
		}
		for _, v := range vs {
			ctx.Response.Header.Add(k, v)
		}
	}
	ctx.SetBody(resp.Body())
}

// toRequest builds an *http.Request from ctx. The request context is the
// server's base context, which is cancelled on shutdown; RequestCtx itself
// must not outlive the handler.
func (s *Server) toRequest(ctx *fasthttp.RequestCtx) (*http.Request, error) {
	uri := string(ctx.RequestURI())
	req, err := http.NewRequestWithContext(s.base, string(ctx.Method()), uri, bytes.NewReader(ctx.PostBody()))
	if err != nil {
		return nil, err
	}

	ctx.Request.Header.VisitAll(func(k, v []byte) {
		key := string(k)
		if key == "Content-Length" || key == "Host" {
			return
		}
		req.Header.Add(key, string(v))
	})

	req.RequestURI = uri
	req.Host = string(ctx.Host())
	req.RemoteAddr = ctx.RemoteAddr().String()
	return req, nil
}

type transport struct {
	owner *Server
	srv   *fasthttp.Server
}

func (t *transport) Serve(ln net.Listener) error {
	return t.srv.Serve(ln)
}

// Shutdown stops accepting connections and waits for open ones within ctx.
// Requests still running when ctx ends see their context cancelled.
func (t *transport) Shutdown(ctx context.Context) error {
	defer t.owner.cancel()

	done := make(chan error, 1)
	go func() { done <- t.srv.Shutdown() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fasthttpLogger routes fasthttp's internal messages to slog.
type fasthttpLogger struct {
	l *slog.Logger
}

func (f fasthttpLogger) Printf(format string, args ...any) {
	f.l.Warn("fasthttp", slog.String("message", fmt.Sprintf(format, args...)))
}

