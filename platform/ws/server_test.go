package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/conduit/internal"
	"github.com/dmitrymomot/conduit/pkg/broadcast"
	"github.com/dmitrymomot/conduit/platform/ws"
)

func newApp(t *testing.T) *internal.App {
	t.Helper()

	app := internal.New()
	app.Get("/echo", func(c internal.Context) (any, error) {
		return "echo:" + string(c.Body()), nil
	})
	app.Get("/items/<id>", func(c internal.Context) (any, error) {
		return map[string]string{"id": c.Param("id"), "body": string(c.Body())}, nil
	})
	app.Get("/bin", func(c internal.Context) (any, error) {
		c.SetHeader("Content-Type", "application/octet-stream")
		return []byte{1, 2, 3}, nil
	})
	app.Get("/whoami", func(c internal.Context) (any, error) {
		return ws.ConnectionID(c) + "|" + c.Header("Authorization"), nil
	})
	require.NoError(t, app.Build())
	return app
}

func startServer(t *testing.T, srv *ws.Server) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		_ = srv.Close()
		ts.Close()
	})
	return ts
}

func dial(t *testing.T, ts *httptest.Server, path string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) (int, string) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return kind, string(data)
}

func TestServer_Frames(t *testing.T) {
	t.Parallel()

	ts := startServer(t, ws.New(newApp(t)))
	conn := dial(t, ts, "/echo", nil)

	t.Run("connection path", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
		kind, data := read(t, conn)
		assert.Equal(t, websocket.TextMessage, kind)
		assert.Equal(t, "echo:hello", data)
	})

	t.Run("path prefix", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("/items/7:a:b")))
		kind, data := read(t, conn)
		assert.Equal(t, websocket.TextMessage, kind)
		assert.JSONEq(t, `{"id":"7","body":"a:b"}`, data)
	})

	t.Run("body with colon and no path", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"a":1}`)))
		_, data := read(t, conn)
		assert.Equal(t, `echo:{"a":1}`, data)
	})

	t.Run("binary response", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("/bin:")))
		kind, data := read(t, conn)
		assert.Equal(t, websocket.BinaryMessage, kind)
		assert.Equal(t, string([]byte{1, 2, 3}), data)
	})

	t.Run("binary frame uses connection path", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("/items/1:raw")))
		_, data := read(t, conn)
		assert.Equal(t, "echo:/items/1:raw", data)
	})

	t.Run("unknown path answers empty frame", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("/missing:x")))
		kind, data := read(t, conn)
		assert.Equal(t, websocket.TextMessage, kind)
		assert.Empty(t, data)
	})
}

func TestServer_RequestContext(t *testing.T) {
	t.Parallel()

	ts := startServer(t, ws.New(newApp(t)))
	conn := dial(t, ts, "/whoami", http.Header{"Authorization": []string{"Bearer t0k"}})

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("")))
	_, data := read(t, conn)

	id, auth, ok := strings.Cut(data, "|")
	require.True(t, ok)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, "Bearer t0k", auth)
}

func TestServer_BroadcastLocal(t *testing.T) {
	t.Parallel()

	srv := ws.New(newApp(t))
	ts := startServer(t, srv)

	a := dial(t, ts, "/echo", nil)
	b := dial(t, ts, "/echo", nil)
	require.Eventually(t, func() bool { return srv.Connections() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, srv.Broadcast(context.Background(), []byte("news")))

	for _, conn := range []*websocket.Conn{a, b} {
		kind, data := read(t, conn)
		assert.Equal(t, websocket.TextMessage, kind)
		assert.Equal(t, "news", data)
	}
}

func TestServer_BroadcastAcrossServers(t *testing.T) {
	t.Parallel()

	hub := broadcast.NewMemory()
	t.Cleanup(func() { _ = hub.Close() })

	publisher := ws.New(newApp(t), ws.WithBroadcaster(hub, "events"))
	receiver := ws.New(newApp(t), ws.WithBroadcaster(hub, "events"))
	require.NoError(t, publisher.Start(context.Background()))
	require.NoError(t, receiver.Start(context.Background()))

	startServer(t, publisher)
	ts := startServer(t, receiver)
	conn := dial(t, ts, "/echo", nil)
	require.Eventually(t, func() bool { return receiver.Connections() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, publisher.Broadcast(context.Background(), []byte("from-a")))

	_, data := read(t, conn)
	assert.Equal(t, "from-a", data)
}

func TestServer_Close(t *testing.T) {
	t.Parallel()

	srv := ws.New(newApp(t))
	ts := startServer(t, srv)
	conn := dial(t, ts, "/echo", nil)
	require.Eventually(t, func() bool { return srv.Connections() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, srv.Close())
	assert.Equal(t, 0, srv.Connections())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)

	require.NoError(t, srv.Close())
}

func TestServer_RejectsAfterClose(t *testing.T) {
	t.Parallel()

	srv := ws.New(newApp(t))
	ts := startServer(t, srv)
	require.NoError(t, srv.Close())

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/echo"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
