package internal

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
)

// Configuration errors. They are collected while the application is
// assembled and returned together from App.Build.
var (
	ErrMalformedPattern = errors.New("conduit: malformed path pattern")
	ErrDuplicateRoute   = errors.New("conduit: duplicate route")
	ErrDuplicateHandler = errors.New("conduit: duplicate handler name")
	ErrUnknownHandler   = errors.New("conduit: unknown handler")
	ErrStateAlreadySet  = errors.New("conduit: application state already set")
	ErrMissingState     = errors.New("conduit: required application state is missing")
	ErrAppFrozen        = errors.New("conduit: application is already built")
	ErrInvalidMethod    = errors.New("conduit: invalid HTTP method")
	ErrNoEndpoint       = errors.New("conduit: handler declares no endpoint")
	ErrNilHandler       = errors.New("conduit: nil handler")
)

// Request-time errors.
var (
	// ErrHandlerSkipped reports that a handler did not run because one of
	// its arguments could not be produced. The response already holds the
	// failure written by the transformer.
	ErrHandlerSkipped = errors.New("conduit: handler skipped")

	ErrNoTransformer = errors.New("conduit: no transformer for type")
	ErrBodyTooLarge  = errors.New("conduit: request body too large")
)

// HTTPError represents an HTTP error with all data needed for rendering.
// Returned from a handler, it sets the response status to Code and is
// written as a JSON object.
type HTTPError struct {
	// Err is the underlying error (for logging, not exposed to users).
	Err error `json:"-"`

	// Message is the user-facing error message.
	Message string `json:"message"`

	// Title is an optional title for the error.
	Title string `json:"title,omitempty"`

	// Detail is an optional extended description.
	Detail string `json:"detail,omitempty"`

	// ErrorCode is an application-specific error code.
	ErrorCode string `json:"code,omitempty"`

	// RequestID is the request tracking ID.
	RequestID string `json:"request_id,omitempty"`

	// Code is the HTTP status code (e.g., 404, 500).
	Code int `json:"status"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func (e *HTTPError) StatusCode() int {
	return e.Code
}

func (e *HTTPError) StatusText() string {
	return http.StatusText(e.Code)
}

// HTTPErrorOption configures an HTTPError.
type HTTPErrorOption func(*HTTPError)

// NewHTTPError creates a new HTTPError with the given status code and message.
func NewHTTPError(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	e := &HTTPError{
		Code:    code,
		Message: message,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func WithTitle(title string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Title = title
	}
}

func WithDetail(detail string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Detail = detail
	}
}

func WithErrorCode(code string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.ErrorCode = code
	}
}

func WithRequestID(id string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.RequestID = id
	}
}

func WithError(err error) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Err = err
	}
}

// Convenience constructors for common HTTP errors.

func ErrBadRequest(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, message, opts...)
}

func ErrUnauthorized(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, message, opts...)
}

func ErrForbidden(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusForbidden, message, opts...)
}

func ErrNotFound(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusNotFound, message, opts...)
}

func ErrConflict(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusConflict, message, opts...)
}

func ErrUnprocessable(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusUnprocessableEntity, message, opts...)
}

func ErrTooManyRequests(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusTooManyRequests, message, opts...)
}

func ErrInternal(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, message, opts...)
}

func ErrServiceUnavailable(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusServiceUnavailable, message, opts...)
}

// Helper functions for error inspection.

func IsHTTPError(err error) bool {
	return AsHTTPError(err) != nil
}

// AsHTTPError extracts the HTTPError from an error chain if present.
// Returns nil if the chain holds no HTTPError.
func AsHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return nil
}

// TransformError reports that a handler argument of type Type could not be
// produced. It matches ErrHandlerSkipped with errors.Is.
type TransformError struct {
	Type reflect.Type
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("conduit: cannot resolve argument %s: %v", e.Type, e.Err)
}

func (e *TransformError) Unwrap() []error {
	return []error{ErrHandlerSkipped, e.Err}
}

// PanicError wraps a value recovered from a panic inside the pipeline.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("conduit: panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
