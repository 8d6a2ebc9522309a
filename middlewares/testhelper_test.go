package middlewares_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/conduit/internal"
)

// serve answers req with an app that routes every path and method to fn.
func serve(t *testing.T, req *http.Request, fn internal.HandlerFunc, opts ...internal.Option) *internal.Response {
	t.Helper()

	if fn == nil {
		fn = func(internal.Context) (any, error) { return nil, nil }
	}
	app := internal.New(opts...)
	app.Any("*", fn)
	require.NoError(t, app.Build())
	return app.Respond(req)
}
