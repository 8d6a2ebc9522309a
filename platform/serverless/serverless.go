// Package serverless runs a Conduit application one request per invocation.
//
// Function runtimes that hand over an *http.Request use Handle or ServeHTTP.
// Runtimes that deliver a JSON event in the API gateway shape use
// HandleEvent, which converts the event into a request and the response
// back into a Result.
//
//	fn := serverless.New(app)
//	resp := fn.Handle(req)
package serverless

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dmitrymomot/conduit/internal"
)

// ErrInvalidEvent is returned when an event cannot be turned into a request.
var ErrInvalidEvent = errors.New("serverless: invalid event")

// Function adapts an App to single invocations.
type Function struct {
	app *internal.App
}

// New wraps app. The app is built on the first invocation; configuration
// errors answer 500.
func New(app *internal.App) *Function {
	return &Function{app: app}
}

// Handle runs the pipeline for r and returns a complete response.
func (f *Function) Handle(r *http.Request) *http.Response {
	resp := f.app.Respond(r)

	body := bytes.Clone(resp.Body())
	header := resp.Header().Clone()
	if header.Get("Content-Length") == "" {
		header.Set("Content-Length", strconv.Itoa(len(body)))
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.Status(), http.StatusText(resp.Status())),
		StatusCode:    resp.Status(),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       r,
	}
}

// ServeHTTP implements http.Handler.
func (f *Function) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.app.ServeHTTP(w, r)
}

// Event is an HTTP invocation in the API gateway JSON shape.
type Event struct {
	Method          string            `json:"httpMethod"`
	Path            string            `json:"path"`
	Headers         map[string]string `json:"headers,omitempty"`
	Query           map[string]string `json:"queryStringParameters,omitempty"`
	Body            string            `json:"body,omitempty"`
	IsBase64Encoded bool              `json:"isBase64Encoded,omitempty"`
}

// Result is the response to an Event.
type Result struct {
	StatusCode      int               `json:"statusCode"`
	Headers         map[string]string `json:"headers,omitempty"`
	Body            string            `json:"body"`
	IsBase64Encoded bool              `json:"isBase64Encoded,omitempty"`
}

// HandleEvent converts ev into a request bound to ctx, runs it and
// converts the response. Bodies that are not valid UTF-8 are returned
// base64 encoded.
func (f *Function) HandleEvent(ctx context.Context, ev Event) (Result, error) {
	req, err := ev.Request(ctx)
	if err != nil {
		return Result{}, err
	}

	resp := f.app.Respond(req)

	res := Result{
		StatusCode: resp.Status(),
		Headers:    make(map[string]string, len(resp.Header())),
	}
	for k := range resp.Header() {
		res.Headers[k] = strings.Join(resp.Header().Values(k), ", ")
	}

	body := resp.Body()
	if utf8.Valid(body) {
		res.Body = string(body)
	} else {
		res.Body = base64.StdEncoding.EncodeToString(body)
		res.IsBase64Encoded = true
	}
	return res, nil
}

// Request builds the *http.Request described by the event.
func (ev Event) Request(ctx context.Context) (*http.Request, error) {
	method := ev.Method
	if method == "" {
		method = http.MethodGet
	}
	path := ev.Path
	if path == "" {
		path = "/"
	}

	u, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("%w: path %q: %w", ErrInvalidEvent, ev.Path, err)
	}
	if len(ev.Query) > 0 {
		q := u.Query()
		for k, v := range ev.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	body := []byte(ev.Body)
	if ev.IsBase64Encoded {
		body, err = base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: body: %w", ErrInvalidEvent, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	for k, v := range ev.Headers {
		req.Header.Set(k, v)
	}
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	}
	return req, nil
}
