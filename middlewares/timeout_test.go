package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/conduit/internal"
	"github.com/dmitrymomot/conduit/middlewares"
)

func TestTimeout(t *testing.T) {
	t.Parallel()

	t.Run("handler sees the deadline", func(t *testing.T) {
		t.Parallel()

		var hasDeadline bool
		resp := serve(t, httptest.NewRequest(http.MethodGet, "/", nil), func(c internal.Context) (any, error) {
			_, hasDeadline = c.Deadline()
			return "done", nil
		}, internal.WithMiddleware(middlewares.Timeout(time.Second)))

		assert.True(t, hasDeadline)
		assert.Equal(t, http.StatusOK, resp.Status())
		assert.Equal(t, "done", string(resp.Body()))
	})

	t.Run("expired deadline answers 504", func(t *testing.T) {
		t.Parallel()

		resp := serve(t, httptest.NewRequest(http.MethodGet, "/", nil), func(c internal.Context) (any, error) {
			select {
			case <-c.Done():
				return nil, c.Err()
			case <-time.After(time.Second):
				return "late", nil
			}
		}, internal.WithMiddleware(middlewares.Timeout(20*time.Millisecond)))

		require.Equal(t, http.StatusGatewayTimeout, resp.Status())
	})

	t.Run("context is released after the response", func(t *testing.T) {
		t.Parallel()

		var captured internal.Context
		serve(t, httptest.NewRequest(http.MethodGet, "/", nil), func(c internal.Context) (any, error) {
			captured = c
			return nil, nil
		}, internal.WithMiddleware(middlewares.Timeout(time.Minute)))

		require.NotNil(t, captured)
		assert.Error(t, captured.Err())
	})
}
