package internal_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/conduit/internal"
)

func TestAsHTTPError(t *testing.T) {
	t.Parallel()

	t.Run("wrapped error keeps fields", func(t *testing.T) {
		t.Parallel()
		httpErr := internal.ErrForbidden("forbidden", internal.WithTitle("Access Denied"), internal.WithErrorCode("AUTH_001"))
		err := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", httpErr))

		got := internal.AsHTTPError(err)
		require.NotNil(t, got)
		assert.Equal(t, http.StatusForbidden, got.StatusCode())
		assert.Equal(t, "Access Denied", got.Title)
		assert.Equal(t, "AUTH_001", got.ErrorCode)
		assert.True(t, internal.IsHTTPError(err))
	})

	t.Run("plain and nil errors", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, internal.AsHTTPError(errors.New("plain")))
		assert.Nil(t, internal.AsHTTPError(nil))
		assert.False(t, internal.IsHTTPError(nil))
	})
}

func TestHTTPError_JSON(t *testing.T) {
	t.Parallel()

	cause := errors.New("db down")
	err := internal.ErrServiceUnavailable("try later", internal.WithError(cause), internal.WithRequestID("r-1"))

	data, mErr := json.Marshal(err)
	require.NoError(t, mErr)
	assert.JSONEq(t, `{"message":"try later","request_id":"r-1","status":503}`, string(data))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Service Unavailable", err.StatusText())
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  *internal.HTTPError
		code int
	}{
		{internal.ErrBadRequest("x"), http.StatusBadRequest},
		{internal.ErrUnauthorized("x"), http.StatusUnauthorized},
		{internal.ErrNotFound("x"), http.StatusNotFound},
		{internal.ErrConflict("x"), http.StatusConflict},
		{internal.ErrUnprocessable("x"), http.StatusUnprocessableEntity},
		{internal.ErrTooManyRequests("x"), http.StatusTooManyRequests},
		{internal.ErrInternal("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.err.Code)
		assert.Equal(t, "x", tt.err.Error())
	}
}

func TestTransformError(t *testing.T) {
	t.Parallel()

	cause := errors.New("bad input")
	err := &internal.TransformError{Type: reflect.TypeFor[int](), Err: cause}

	assert.ErrorIs(t, err, internal.ErrHandlerSkipped)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "int")
}

func TestPanicError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	assert.ErrorIs(t, &internal.PanicError{Value: cause}, cause)
	assert.NoError(t, (&internal.PanicError{Value: "text"}).Unwrap())
	assert.Equal(t, "conduit: panic: text", (&internal.PanicError{Value: "text"}).Error())
}

type fieldStatusError struct {
	Status int
}

func (e fieldStatusError) Error() string { return "field status" }

type methodStatusError struct {
	code int
}

func (e methodStatusError) Error() string   { return "method status" }
func (e methodStatusError) StatusCode() int { return e.code }

func TestDefaultErrorHandler(t *testing.T) {
	t.Parallel()

	t.Run("http error code and JSON body", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/", "", nil)
		internal.DefaultErrorHandler(c, fmt.Errorf("wrapped: %w", internal.ErrNotFound("no item")))

		assert.Equal(t, http.StatusNotFound, c.Response().Status())
		var body map[string]any
		require.NoError(t, json.Unmarshal(c.Response().Body(), &body))
		assert.Equal(t, "no item", body["message"])
	})

	t.Run("status code method", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/", "", nil)
		internal.DefaultErrorHandler(c, fmt.Errorf("wrapped: %w", methodStatusError{code: http.StatusConflict}))

		assert.Equal(t, http.StatusConflict, c.Response().Status())
		assert.Contains(t, string(c.Response().Body()), "method status")
	})

	t.Run("status field is not read", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/", "", nil)
		c.SetStatus(http.StatusAccepted)
		internal.DefaultErrorHandler(c, fieldStatusError{Status: http.StatusTeapot})

		assert.Equal(t, http.StatusAccepted, c.Response().Status())
		assert.Equal(t, "field status", string(c.Response().Body()))
	})

	t.Run("expired deadline answers 504", func(t *testing.T) {
		t.Parallel()
		c := newTestContext(t, http.MethodGet, "/", "", nil)
		internal.DefaultErrorHandler(c, fmt.Errorf("query: %w", context.DeadlineExceeded))

		assert.Equal(t, http.StatusGatewayTimeout, c.Response().Status())
	})
}
