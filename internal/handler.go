package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// HandlerFunc is the terminal function of a route. Its result is written
// into the response by Context.Respond.
//
// Returning an error that matches ErrHandlerSkipped leaves the response
// untouched; the Bind helpers use it when an argument cannot be produced.
type HandlerFunc func(c Context) (any, error)

// ErrorHandler writes a handler error into the response.
type ErrorHandler func(c Context, err error)

// Middleware runs on every matched request before the handler. It may
// read the request and change the response or the store, but it cannot
// stop the pipeline: the handler always runs afterwards.
type Middleware interface {
	Handle(c Context)
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(c Context)

func (f MiddlewareFunc) Handle(c Context) { f(c) }

// Gate is a predicate evaluated before a handler. Returning false skips the
// handler and the remaining gates; the gate is expected to have written
// the rejection response.
type Gate interface {
	Check(c Context) bool
}

// GateFunc adapts a function to Gate.
type GateFunc func(c Context) bool

func (f GateFunc) Check(c Context) bool { return f(c) }

// Interpreter observes the final response of every request, including
// unmatched ones.
type Interpreter interface {
	Interpret(c Context)
}

// InterpreterFunc adapts a function to Interpreter.
type InterpreterFunc func(c Context)

func (f InterpreterFunc) Interpret(c Context) { f(c) }

// ResponseWriterTo is implemented by results that write themselves into
// the response.
type ResponseWriterTo interface {
	WriteResponse(r *Response) error
}

// Bind0 adapts a handler without arguments.
func Bind0[R any](fn func() (R, error)) HandlerFunc {
	return func(c Context) (any, error) {
		return fn()
	}
}

// Bind1 adapts a handler with one transformer-derived argument.
func Bind1[A, R any](fn func(A) (R, error)) HandlerFunc {
	return func(c Context) (any, error) {
		a, err := Resolve[A](c)
		if err != nil {
			return nil, err
		}
		return fn(a)
	}
}

// Bind2 adapts a handler with two arguments resolved left to right.
func Bind2[A, B, R any](fn func(A, B) (R, error)) HandlerFunc {
	return func(c Context) (any, error) {
		a, err := Resolve[A](c)
		if err != nil {
			return nil, err
		}
		b, err := Resolve[B](c)
		if err != nil {
			return nil, err
		}
		return fn(a, b)
	}
}

// Bind3 adapts a handler with three arguments resolved left to right.
func Bind3[A, B, C, R any](fn func(A, B, C) (R, error)) HandlerFunc {
	return func(c Context) (any, error) {
		a, err := Resolve[A](c)
		if err != nil {
			return nil, err
		}
		b, err := Resolve[B](c)
		if err != nil {
			return nil, err
		}
		cv, err := Resolve[C](c)
		if err != nil {
			return nil, err
		}
		return fn(a, b, cv)
	}
}

// Bind4 adapts a handler with four arguments resolved left to right.
func Bind4[A, B, C, D, R any](fn func(A, B, C, D) (R, error)) HandlerFunc {
	return func(c Context) (any, error) {
		a, err := Resolve[A](c)
		if err != nil {
			return nil, err
		}
		b, err := Resolve[B](c)
		if err != nil {
			return nil, err
		}
		cv, err := Resolve[C](c)
		if err != nil {
			return nil, err
		}
		d, err := Resolve[D](c)
		if err != nil {
			return nil, err
		}
		return fn(a, b, cv, d)
	}
}

type jsonResult struct {
	v any
}

func (j jsonResult) WriteResponse(r *Response) error {
	return writeJSON(r, j.v)
}

// JSON forces v to be written as JSON, including strings and byte slices.
func JSON(v any) ResponseWriterTo {
	return jsonResult{v: v}
}

type statusResult struct {
	v    any
	code int
}

func (s statusResult) WriteResponse(r *Response) error {
	r.SetStatus(s.code)
	return writeValue(r, s.v)
}

// WithStatus writes v with the given status code.
func WithStatus(code int, v any) ResponseWriterTo {
	return statusResult{code: code, v: v}
}

// writeValue serializes a handler result. nil leaves the body alone,
// strings and byte slices are written as is, everything else is JSON.
func writeValue(r *Response, v any) error {
	switch val := v.(type) {
	case nil:
		return nil
	case ResponseWriterTo:
		return val.WriteResponse(r)
	case string:
		r.SetBody([]byte(val))
	case []byte:
		r.SetBody(val)
	default:
		return writeJSON(r, val)
	}
	return nil
}

func writeJSON(r *Response, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if r.Header().Get("Content-Type") == "" {
		r.Header().Set("Content-Type", "application/json")
	}
	r.SetBody(data)
	return nil
}

// DefaultErrorHandler writes handler errors. The status of an error comes
// from one of two places, checked through the wrap chain:
//
//   - *HTTPError: Code becomes the status and the error is written as JSON.
//   - an error with a StatusCode() int method: its positive result becomes
//     the status and the body is the error text.
//
// Struct fields are never inspected, so an error type with a plain
// `Status int` field keeps the current status; give it a StatusCode method
// or wrap an *HTTPError instead. An expired request deadline answers 504.
// Any other error is written as text with the status left as it was.
func DefaultErrorHandler(c Context, err error) {
	resp := c.Response()
	if httpErr := AsHTTPError(err); httpErr != nil {
		resp.SetStatus(httpErr.Code)
		if werr := writeJSON(resp, httpErr); werr == nil {
			return
		}
	}

	var coded interface{ StatusCode() int }
	switch {
	case errors.As(err, &coded) && coded.StatusCode() > 0:
		resp.SetStatus(coded.StatusCode())
	case errors.Is(err, context.DeadlineExceeded):
		resp.SetStatus(http.StatusGatewayTimeout)
	}
	if resp.Header().Get("Content-Type") == "" {
		resp.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	resp.SetBody([]byte(err.Error()))

	if resp.Status() >= http.StatusInternalServerError {
		c.LogError("handler failed", "error", err)
	}
}
