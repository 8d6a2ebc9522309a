package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/conduit/internal"
	"github.com/dmitrymomot/conduit/pkg/broadcast"
)

// ErrServerClosed is returned by Start after Close.
var ErrServerClosed = errors.New("ws: server closed")

// Server accepts WebSocket connections and answers their frames with an App.
type Server struct {
	app      *internal.App
	upgrader websocket.Upgrader
	logger   *slog.Logger

	broadcaster broadcast.Broadcaster
	channel     string

	writeTimeout time.Duration
	pongWait     time.Duration
	readLimit    int64
	sendBuffer   int

	mu     sync.RWMutex
	conns  map[string]*conn
	sub    broadcast.Subscription
	closed bool
	wg     sync.WaitGroup
}

// New creates a Server for app.
func New(app *internal.App, opts ...Option) *Server {
	s := &Server{
		app:          app,
		logger:       app.Logger(),
		writeTimeout: DefaultWriteTimeout,
		pongWait:     DefaultPongWait,
		readLimit:    DefaultReadLimit,
		sendBuffer:   DefaultSendBuffer,
		conns:        make(map[string]*conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to the broadcaster, if any, and delivers its messages to
// local clients until ctx ends or the server is closed.
func (s *Server) Start(ctx context.Context) error {
	if s.broadcaster == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if s.sub != nil {
		return nil
	}

	sub, err := s.broadcaster.Subscribe(ctx, s.channel)
	if err != nil {
		return fmt.Errorf("ws: subscribe to %q: %w", s.channel, err)
	}
	s.sub = sub

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for msg := range sub.C() {
			s.deliver(msg.Data)
		}
	}()
	return nil
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Build(); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if s.isClosed() {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.DebugContext(r.Context(), "websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := newConn(s, ws, r)
	if !s.add(c) {
		_ = c.close(websocket.CloseGoingAway)
		return
	}
	defer s.remove(c)

	s.logger.DebugContext(r.Context(), "websocket connected",
		slog.String("conn_id", c.id),
		slog.String("path", r.URL.Path),
	)
	if err := c.serve(r.Context()); err != nil {
		s.logger.DebugContext(r.Context(), "websocket closed", slog.String("conn_id", c.id), slog.Any("error", err))
	}
}

// Broadcast sends msg to every connected client. With a broadcaster the
// message is published instead and delivered by the subscription.
func (s *Server) Broadcast(ctx context.Context, msg []byte) error {
	if s.broadcaster != nil {
		return s.broadcaster.Publish(ctx, s.channel, msg)
	}
	s.deliver(msg)
	return nil
}

// Connections returns the number of open connections.
func (s *Server) Connections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Close closes every connection and the broadcast subscription. The
// broadcaster itself is left open.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	sub := s.sub
	s.mu.Unlock()

	var errs []error
	if sub != nil {
		errs = append(errs, sub.Close())
	}
	for _, c := range conns {
		if err := c.close(websocket.CloseGoingAway); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	s.wg.Wait()
	return errors.Join(errs...)
}

// Listen serves WebSocket connections on addr with the lifecycle of
// App.Listen. Open connections are closed during shutdown.
func (s *Server) Listen(addr string, opts ...internal.RunOption) error {
	return s.app.Serve(func(sc internal.ServerConfig) internal.Transport {
		return &transport{
			ws: s,
			srv: &http.Server{
				Handler:           s,
				ReadHeaderTimeout: sc.ReadHeaderTimeout,
				MaxHeaderBytes:    sc.MaxHeaderBytes,
			},
		}
	}, append([]internal.RunOption{internal.Address(addr)}, opts...)...)
}

func (s *Server) deliver(msg []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conns {
		if !c.enqueue(frame{kind: websocket.TextMessage, data: msg}) {
			s.logger.Warn("websocket send buffer full, dropping broadcast", slog.String("conn_id", c.id))
		}
	}
}

func (s *Server) add(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c.id] = c
	s.wg.Add(1)
	return true
}

func (s *Server) remove(c *conn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// transport runs an http.Server for upgrades and closes hijacked
// connections on shutdown, which http.Server does not track.
type transport struct {
	ws  *Server
	srv *http.Server
}

func (t *transport) Serve(ln net.Listener) error {
	if err := t.ws.Start(context.Background()); err != nil {
		return err
	}
	return t.srv.Serve(ln)
}

func (t *transport) Shutdown(ctx context.Context) error {
	return errors.Join(t.srv.Shutdown(ctx), t.ws.Close())
}
