package health_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/conduit/pkg/health"
)

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	t.Run("plain", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		health.LivenessHandler()(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK", w.Body.String())
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		r.Header.Set("Accept", "application/json")
		health.LivenessHandler()(w, r)

		var resp health.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, health.StatusHealthy, resp.Status)
	})
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	t.Run("all healthy", func(t *testing.T) {
		t.Parallel()
		checks := health.Checks{
			"db":    func(context.Context) error { return nil },
			"cache": func(context.Context) error { return nil },
		}
		w := httptest.NewRecorder()
		health.ReadinessHandler(checks)(w, httptest.NewRequest(http.MethodGet, "/health/ready?format=json", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp health.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, health.StatusHealthy, resp.Status)
		assert.Len(t, resp.Checks, 2)
	})

	t.Run("one failing", func(t *testing.T) {
		t.Parallel()
		checks := health.Checks{
			"db":    func(context.Context) error { return nil },
			"redis": func(context.Context) error { return health.ErrCheckFailed },
		}
		w := httptest.NewRecorder()
		health.ReadinessHandler(checks)(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "Service Unavailable", w.Body.String())
	})

	t.Run("timeout applies to checks", func(t *testing.T) {
		t.Parallel()
		checks := health.Checks{
			"slow": func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}
		resp := health.Run(context.Background(), checks, health.WithTimeout(20*time.Millisecond))
		assert.Equal(t, health.StatusUnhealthy, resp.Status)
		assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["slow"].Error)
	})

	t.Run("no checks", func(t *testing.T) {
		t.Parallel()
		resp := health.Run(context.Background(), nil)
		assert.Equal(t, health.StatusHealthy, resp.Status)
		assert.Empty(t, resp.Checks)
	})
}
