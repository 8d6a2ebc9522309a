package ws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

type connIDKey struct{}

// ConnectionID returns the id of the connection a request arrived on.
// It is empty for requests that did not come through a WebSocket.
func ConnectionID(ctx context.Context) string {
	id, _ := ctx.Value(connIDKey{}).(string)
	return id
}

type frame struct {
	kind int
	data []byte
}

type conn struct {
	id     string
	srv    *Server
	ws     *websocket.Conn
	req    *http.Request
	send   chan frame
	done   chan struct{}
	closed sync.Once
}

func newConn(s *Server, ws *websocket.Conn, r *http.Request) *conn {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &conn{
		id:   id.String(),
		srv:  s,
		ws:   ws,
		req:  r,
		send: make(chan frame, s.sendBuffer),
		done: make(chan struct{}),
	}
}

// serve runs the read and write pumps until either stops.
func (c *conn) serve(ctx context.Context) error {
	defer c.close(websocket.CloseNormalClosure)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer c.stop()
		return c.readPump(ctx)
	})
	g.Go(func() error {
		return c.writePump(ctx)
	})

	err := g.Wait()
	if isNormalClose(err) {
		return nil
	}
	return err
}

func (c *conn) readPump(ctx context.Context) error {
	c.ws.SetReadLimit(c.srv.readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.srv.pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.srv.pongWait))
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.srv.pongWait))

		out, err := c.handle(ctx, kind, data)
		if err != nil {
			c.srv.logger.DebugContext(ctx, "websocket frame rejected",
				slog.String("conn_id", c.id),
				slog.Any("error", err),
			)
			continue
		}

		select {
		case c.send <- out:
		case <-ctx.Done():
			return nil
		}
	}
}

// writePump owns all data writes. Closing the connection on exit unblocks
// the read pump.
func (c *conn) writePump(ctx context.Context) error {
	defer c.ws.Close()

	ticker := time.NewTicker(c.srv.pongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case f := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.srv.writeTimeout))
			if err := c.ws.WriteMessage(f.kind, f.data); err != nil {
				return err
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.srv.writeTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return err
			}
		case <-c.done:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// handle answers one inbound frame through the application.
func (c *conn) handle(ctx context.Context, kind int, data []byte) (frame, error) {
	target, body := c.req.URL.RequestURI(), data
	if kind == websocket.TextMessage {
		target, body = splitFrame(data, target)
	}

	u, err := url.Parse(target)
	if err != nil {
		return frame{}, fmt.Errorf("invalid frame path %q: %w", target, err)
	}

	req, err := http.NewRequestWithContext(
		context.WithValue(ctx, connIDKey{}, c.id),
		http.MethodGet,
		u.String(),
		bytes.NewReader(body),
	)
	if err != nil {
		return frame{}, err
	}
	req.Host = c.req.Host
	req.RemoteAddr = c.req.RemoteAddr
	for k, v := range c.req.Header {
		if !isHandshakeHeader(k) {
			req.Header[k] = v
		}
	}

	resp := c.srv.app.Respond(req)
	return frame{
		kind: messageKind(resp.Header().Get("Content-Type")),
		data: bytes.Clone(resp.Body()),
	}, nil
}

// enqueue queues f without blocking and reports whether it was accepted.
func (c *conn) enqueue(f frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

func (c *conn) stop() {
	c.closed.Do(func() { close(c.done) })
}

// close sends a close frame with code and closes the network connection.
func (c *conn) close(code int) error {
	deadline := time.Now().Add(c.srv.writeTimeout)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
	c.stop()
	return c.ws.Close()
}

// splitFrame splits "path:body" frames. Frames that do not start with a
// path are sent to fallback whole.
func splitFrame(data []byte, fallback string) (string, []byte) {
	if len(data) == 0 || data[0] != '/' {
		return fallback, data
	}
	path, body, ok := bytes.Cut(data, []byte{':'})
	if !ok {
		return string(data), nil
	}
	return string(path), body
}

func messageKind(contentType string) int {
	if contentType == "" {
		return websocket.TextMessage
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return websocket.BinaryMessage
	}
	switch {
	case strings.HasPrefix(mt, "text/"),
		mt == "application/json",
		strings.HasSuffix(mt, "+json"):
		return websocket.TextMessage
	}
	return websocket.BinaryMessage
}

func isHandshakeHeader(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case "Upgrade", "Connection", "Content-Length", "Content-Type":
		return true
	}
	return strings.HasPrefix(http.CanonicalHeaderKey(name), "Sec-Websocket-")
}

func isNormalClose(err error) bool {
	return err == nil ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
		errors.Is(err, context.Canceled)
}
