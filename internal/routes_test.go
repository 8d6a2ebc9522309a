package internal_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/conduit/internal"
)

func TestRouteTable(t *testing.T) {
	t.Parallel()

	t.Run("first match wins", func(t *testing.T) {
		t.Parallel()
		rt := internal.NewRouteTable()
		require.NoError(t, rt.Add("/users/me", http.MethodGet, nil, "me"))
		require.NoError(t, rt.Add("/users/<id>", http.MethodGet, nil, "show"))

		r, params, ok := rt.Lookup(http.MethodGet, "/users/me")
		require.True(t, ok)
		assert.Equal(t, "me", r.Handler)
		assert.Empty(t, params)

		r, params, ok = rt.Lookup(http.MethodGet, "/users/7")
		require.True(t, ok)
		assert.Equal(t, "show", r.Handler)
		assert.Equal(t, "7", params.Get("id"))
	})

	t.Run("method fallback", func(t *testing.T) {
		t.Parallel()
		rt := internal.NewRouteTable()
		require.NoError(t, rt.Add("/", http.MethodGet, nil, "get"))
		require.NoError(t, rt.Add("/head", http.MethodHead, nil, "head"))

		assert.True(t, rt.Contains(http.MethodHead, "/"))
		assert.False(t, rt.Contains(http.MethodPost, "/"))
		assert.False(t, rt.Contains(http.MethodGet, "/head"))
		assert.True(t, rt.Contains(http.MethodHead, "/head"))
	})

	t.Run("any method", func(t *testing.T) {
		t.Parallel()
		rt := internal.NewRouteTable()
		require.NoError(t, rt.Add("/hook", "", nil, "any"))
		assert.True(t, rt.Contains(http.MethodPatch, "/hook"))
		assert.Equal(t, "", rt.Routes()[0].Method)
	})

	t.Run("duplicates are rejected", func(t *testing.T) {
		t.Parallel()
		rt := internal.NewRouteTable()
		require.NoError(t, rt.Add("/items/<id>", http.MethodGet, nil, "a"))
		require.ErrorIs(t, rt.Add("/items/<key>/", "get", nil, "b"), internal.ErrDuplicateRoute)
		require.NoError(t, rt.Add("/items/<id>", http.MethodPut, nil, "c"))
		assert.Equal(t, 2, rt.Len())
	})

	t.Run("bad input", func(t *testing.T) {
		t.Parallel()
		rt := internal.NewRouteTable()
		require.ErrorIs(t, rt.Add("/a/<b", http.MethodGet, nil, "x"), internal.ErrMalformedPattern)
		require.ErrorIs(t, rt.Add("/a", "GE T", nil, "x"), internal.ErrInvalidMethod)
	})
}
