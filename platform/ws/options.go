package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/conduit/pkg/broadcast"
)

const (
	DefaultWriteTimeout = 10 * time.Second
	DefaultPongWait     = 60 * time.Second
	DefaultReadLimit    = 1 << 20
	DefaultSendBuffer   = 32
)

// Option configures a Server.
type Option func(*Server)

// WithCheckOrigin sets the origin check used during the upgrade. By default
// only same-origin requests are accepted.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// WithBroadcaster routes Broadcast through b on channel.
func WithBroadcaster(b broadcast.Broadcaster, channel string) Option {
	return func(s *Server) {
		s.broadcaster = b
		s.channel = channel
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

// WithWriteTimeout bounds each frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithPongWait sets how long a connection may stay silent. Pings are sent
// at nine tenths of this interval.
func WithPongWait(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pongWait = d
		}
	}
}

// WithReadLimit caps the size of an inbound frame.
func WithReadLimit(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.readLimit = n
		}
	}
}

// WithSendBuffer sets the number of outbound frames queued per connection.
// Broadcast frames for a full queue are dropped.
func WithSendBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}
