package gates_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/conduit/gates"
	"github.com/dmitrymomot/conduit/internal"
)

// guarded builds an app whose single GET /r handler is protected by gate.
func guarded(t *testing.T, gate internal.Gate) (*internal.App, *int) {
	t.Helper()

	calls := new(int)
	ctl := internal.NewController("guarded", internal.Guard(gate))
	ctl.Get("r", "/r", func(internal.Context) (any, error) {
		*calls++
		return "ok", nil
	}, internal.HTTPCode(http.StatusOK))
	app := internal.New(internal.WithControllers(ctl))
	require.NoError(t, app.Build())
	return app, calls
}

func decodeError(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestRequireQuery(t *testing.T) {
	t.Parallel()

	app, calls := guarded(t, gates.RequireQuery("page", "size"))

	resp := app.Respond(httptest.NewRequest(http.MethodGet, "/r?page=1", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Status())
	body := decodeError(t, resp.Body())
	assert.Equal(t, "missing query parameter", body["message"])
	assert.Equal(t, "size", body["detail"])
	assert.Equal(t, 0, *calls)

	resp = app.Respond(httptest.NewRequest(http.MethodGet, "/r?page=1&size=10", nil))
	assert.Equal(t, http.StatusOK, resp.Status())
	assert.Equal(t, 1, *calls)
}

func TestRequireHeader(t *testing.T) {
	t.Parallel()

	app, calls := guarded(t, gates.RequireHeader("X-Api-Key"))

	resp := app.Respond(httptest.NewRequest(http.MethodGet, "/r", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Status())
	assert.Equal(t, "X-Api-Key", decodeError(t, resp.Body())["detail"])

	req := httptest.NewRequest(http.MethodGet, "/r", nil)
	req.Header.Set("X-Api-Key", "secret")
	resp = app.Respond(req)
	assert.Equal(t, http.StatusOK, resp.Status())
	assert.Equal(t, 1, *calls)
}

func TestAllow(t *testing.T) {
	t.Parallel()

	t.Run("default rejection is 403", func(t *testing.T) {
		t.Parallel()

		app, calls := guarded(t, gates.Allow(func(c internal.Context) bool {
			return c.Query("role") == "admin"
		}, nil))

		resp := app.Respond(httptest.NewRequest(http.MethodGet, "/r?role=user", nil))
		assert.Equal(t, http.StatusForbidden, resp.Status())
		assert.Equal(t, 0, *calls)

		resp = app.Respond(httptest.NewRequest(http.MethodGet, "/r?role=admin", nil))
		assert.Equal(t, http.StatusOK, resp.Status())
		assert.Equal(t, 1, *calls)
	})

	t.Run("custom rejection", func(t *testing.T) {
		t.Parallel()

		app, _ := guarded(t, gates.Allow(func(internal.Context) bool { return false },
			internal.ErrUnauthorized("login required")))

		resp := app.Respond(httptest.NewRequest(http.MethodGet, "/r", nil))
		assert.Equal(t, http.StatusUnauthorized, resp.Status())
		assert.Equal(t, "login required", decodeError(t, resp.Body())["message"])
	})

	t.Run("custom error handler receives the rejection", func(t *testing.T) {
		t.Parallel()

		var handled error
		ctl := internal.NewController("g", internal.Guard(gates.Allow(func(internal.Context) bool { return false }, nil)))
		ctl.Get("r", "/r", func(internal.Context) (any, error) { return nil, nil })
		app := internal.New(
			internal.WithControllers(ctl),
			internal.WithErrorHandler(func(c internal.Context, err error) {
				handled = err
				c.SetStatus(http.StatusTeapot)
			}),
		)

		resp := app.Respond(httptest.NewRequest(http.MethodGet, "/r", nil))
		assert.Equal(t, http.StatusTeapot, resp.Status())
		assert.True(t, internal.IsHTTPError(handled))
	})
}
