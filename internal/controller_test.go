package internal_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/conduit/internal"
)

func text(s string) internal.HandlerFunc {
	return func(c internal.Context) (any, error) { return s, nil }
}

func TestController_Routes(t *testing.T) {
	t.Parallel()

	ctl := internal.NewController("users", internal.Prefix("/users/"))
	ctl.Get("list", "/", text("list"))
	ctl.Get("show", "<id>/", text("show"))
	ctl.Add("search", text("search"), internal.On(http.MethodGet, "/search", "/find"), internal.On(http.MethodPost, "/search"))
	require.NoError(t, ctl.Err())

	assert.Equal(t, []internal.ControllerRoute{
		{Path: "/users", Method: http.MethodGet, Handler: "list"},
		{Path: "/users/<id>", Method: http.MethodGet, Handler: "show"},
		{Path: "/users/search", Method: http.MethodGet, Handler: "search"},
		{Path: "/users/find", Method: http.MethodGet, Handler: "search"},
		{Path: "/users/search", Method: http.MethodPost, Handler: "search"},
	}, ctl.Routes())

	root := internal.NewController("root")
	root.Get("index", "", text("i"))
	assert.Equal(t, "/", root.Routes()[0].Path)
	assert.Equal(t, "/", root.Prefix())
}

func TestController_ConfigErrors(t *testing.T) {
	t.Parallel()

	ctl := internal.NewController("bad")
	ctl.Get("a", "/a", text("a"))
	ctl.Get("a", "/b", text("b"))
	ctl.Get("broken", "/<x", text("x"))
	ctl.Add("nowhere", text("n"))
	ctl.Get("nil", "/nil", nil)

	err := ctl.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, internal.ErrDuplicateHandler)
	assert.ErrorIs(t, err, internal.ErrMalformedPattern)
	assert.ErrorIs(t, err, internal.ErrNoEndpoint)
	assert.ErrorIs(t, err, internal.ErrNilHandler)
}

func TestController_DefaultStatus(t *testing.T) {
	t.Parallel()

	ctl := internal.NewController("things", internal.Prefix("/things"))
	ctl.Get("index", "/", text(""))
	ctl.Get("detail", "/detail", text(""))
	ctl.Post("create", "/new", text(""))
	ctl.Get("custom", "/custom", text(""), internal.HTTPCode(http.StatusAccepted))
	ctl.Get("explicit", "/explicit", func(c internal.Context) (any, error) {
		c.SetStatus(http.StatusTeapot)
		return "", nil
	})
	app := internal.New(internal.WithControllers(ctl))

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/things", http.StatusOK},
		{http.MethodGet, "/things/detail", http.StatusCreated},
		{http.MethodPost, "/things/new", http.StatusOK},
		{http.MethodGet, "/things/custom", http.StatusAccepted},
		{http.MethodGet, "/things/explicit", http.StatusTeapot},
	}
	for _, tt := range tests {
		resp := app.Respond(newRequest(tt.method, tt.path, ""))
		assert.Equal(t, tt.want, resp.Status(), tt.path)
	}
}

func TestController_MiddlewareStatusWins(t *testing.T) {
	t.Parallel()

	ctl := internal.NewController("c")
	ctl.Get("x", "/x", text("body"))
	app := internal.New(
		internal.WithControllers(ctl),
		internal.WithMiddleware(internal.MiddlewareFunc(func(c internal.Context) {
			c.SetStatus(http.StatusUnauthorized)
		})),
	)

	resp := app.Respond(newRequest(http.MethodGet, "/x", ""))
	assert.Equal(t, http.StatusUnauthorized, resp.Status())
	assert.Equal(t, "body", string(resp.Body()))
}

type greeter struct {
	greeting string
}

func TestController_Inject(t *testing.T) {
	t.Parallel()

	svc := &greeter{greeting: "hello"}
	ctl := internal.NewController("greet",
		internal.Inject("caller", func(c internal.Context) (any, error) {
			name := c.Header("X-Caller")
			if name == "" {
				_ = c.String(http.StatusUnauthorized, "who are you")
				return nil, errors.New("no caller")
			}
			return name, nil
		}),
	)
	ctl.Get("hi", "/", func(c internal.Context) (any, error) {
		caller, _ := internal.Injected[string](c, "caller")
		return svc.greeting + " " + caller, nil
	})
	app := internal.New(internal.WithControllers(ctl))

	req := newRequest(http.MethodGet, "/", "")
	req.Header.Set("X-Caller", "bob")
	resp := app.Respond(req)
	assert.Equal(t, "hello bob", string(resp.Body()))

	resp = app.Respond(newRequest(http.MethodGet, "/", ""))
	assert.Equal(t, http.StatusUnauthorized, resp.Status())
	assert.Equal(t, "who are you", string(resp.Body()))
}

func TestController_HandleUnknown(t *testing.T) {
	t.Parallel()

	ctl := internal.NewController("c")
	c := newTestContext(t, http.MethodGet, "/", "", nil)
	ctl.Handle("missing", c)
	assert.Equal(t, http.StatusNotFound, c.Response().Status())
}

func TestController_FrozenAfterMount(t *testing.T) {
	t.Parallel()

	ctl := internal.NewController("c")
	ctl.Get("a", "/a", text("a"))
	app := internal.New(internal.WithControllers(ctl))
	ctl.Get("b", "/b", text("b"))

	require.ErrorIs(t, app.Build(), internal.ErrAppFrozen)
}
