package gates_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/conduit/gates"
	"github.com/dmitrymomot/conduit/internal"
)

func TestHost(t *testing.T) {
	t.Parallel()

	app, _ := guarded(t, gates.Host("API.example.com", "*.tenants.example.com", " "))

	tests := map[string]int{
		"api.example.com":             http.StatusOK,
		"api.example.com:8443":        http.StatusOK,
		"Api.Example.Com":             http.StatusOK,
		"acme.tenants.example.com":    http.StatusOK,
		"a.b.tenants.example.com":     http.StatusOK,
		"tenants.example.com":         http.StatusNotFound,
		"example.com":                 http.StatusNotFound,
		"eviltenants.example.com":     http.StatusNotFound,
		"api.example.com.attacker.io": http.StatusNotFound,
	}
	for host, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/r", nil)
		req.Host = host
		assert.Equal(t, want, app.Respond(req).Status(), host)
	}
}

func TestSubdomain(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"acme.example.com":     "acme",
		"a.b.example.com:8080": "a.b",
		"example.com":          "",
		"other.com":            "",
		"[::1]:8080":           "",
		"ACME.Example.com":     "acme",
	}
	for host, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = host
		c, err := internal.NewContext(req, nil)
		require.NoError(t, err)
		assert.Equal(t, want, gates.Subdomain(c, "Example.com"), host)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "[::1]:8080"
	c, err := internal.NewContext(req, nil)
	require.NoError(t, err)
	assert.Equal(t, "[::1]", gates.Domain(c))
}
