package internal_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/conduit/internal"
)

func TestExtractor(t *testing.T) {
	t.Parallel()

	t.Run("empty sources returns false", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/", "", nil)
		v, ok := internal.NewExtractor().Extract(c)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("first non-empty source wins", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/?key=from-query", "", nil)
		c.Request().Header.Set("X-Key", "from-header")

		ext := internal.NewExtractor(internal.FromHeader("X-Missing"), internal.FromQuery("key"), internal.FromHeader("X-Key"))
		v, ok := ext.Extract(c)
		require.True(t, ok)
		assert.Equal(t, "from-query", v)
	})

	t.Run("param and store", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/t/acme", "", nil)
		require.True(t, c.With(internal.MustCompilePattern("/t/<tenant>"), ""))
		require.NoError(t, c.Set("user", "u-1"))

		v, _ := internal.NewExtractor(internal.FromParam("tenant")).Extract(c)
		assert.Equal(t, "acme", v)
		v, _ = internal.NewExtractor(internal.FromStore("user")).Extract(c)
		assert.Equal(t, "u-1", v)
	})

	t.Run("bearer token", func(t *testing.T) {
		t.Parallel()
		tests := map[string]string{
			"Bearer abc": "abc",
			"bearer xyz": "xyz",
			"Basic abc":  "",
			"Bearer ":    "",
		}
		for header, want := range tests {
			c := newTestContext(t, http.MethodGet, "/", "", nil)
			c.Request().Header.Set("Authorization", header)
			v, _ := internal.NewExtractor(internal.FromBearerToken()).Extract(c)
			assert.Equal(t, want, v, header)
		}
	})

	t.Run("remote ip", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/", "", nil)
		c.Request().RemoteAddr = "10.0.0.1:5555"
		v, _ := internal.NewExtractor(internal.FromRemoteIP()).Extract(c)
		assert.Equal(t, "10.0.0.1", v)

		c.Request().Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		v, _ = internal.NewExtractor(internal.FromRemoteIP()).Extract(c)
		assert.Equal(t, "203.0.113.7", v)
	})
}
