package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrymomot/conduit/pkg/codec"
	"github.com/dmitrymomot/conduit/pkg/logger"
	"github.com/dmitrymomot/conduit/pkg/validator"
)

// RouteInfo describes the route selected for a request.
type RouteInfo struct {
	Controller string
	Handler    string
	Pattern    string
	Method     string
}

// Dispatcher runs a named handler for a prepared Context.
// Controller is the standard implementation.
type Dispatcher interface {
	Inject(c Context) error
	Handle(name string, c Context)
}

// Context carries a single request through the pipeline: the request and
// its buffered body, the response under construction, the matched route,
// the per-request store and the application state.
//
// Context implements context.Context by delegating to the request context,
// so it can be passed to any function that expects one.
type Context interface {
	context.Context

	// Request returns the request. Its Body is a reader over the buffered body.
	Request() *http.Request

	// Body returns the buffered request body.
	Body() []byte

	// Response returns the response under construction.
	Response() *Response

	// Header returns the request header value by name.
	Header(name string) string

	// SetHeader sets a response header.
	SetHeader(name, value string)

	// SetStatus sets the response status explicitly.
	SetStatus(code int)

	// Params returns the captures of the matched route, nil before matching.
	Params() Params

	// Param returns the named capture or an empty string.
	Param(name string) string

	// Query returns the first query value by name.
	Query(name string) string

	// QueryValues returns the parsed query string.
	QueryValues() url.Values

	// Route returns the route selected for the request.
	Route() RouteInfo

	// Store returns the per-request key/value store.
	Store() *Store

	// Set stores v in the per-request store.
	Set(key string, v any) error

	// Get reads a store value into dst. See Store.Get.
	Get(key string, dst any) bool

	// State returns the application state, nil if none was installed.
	State() any

	// Field returns a value produced by controller injection.
	Field(name string) (any, bool)

	// SetField records an injected value for the current request.
	SetField(name string, v any)

	// SetValue attaches a value to the request context.
	SetValue(key, val any)

	// SetContext replaces the request context, e.g. to add a deadline or a span.
	// A ctx derived from the Context itself is accepted: its deadline and
	// cancellation move onto the request context, while values added on top
	// of the Context are not kept. Use SetValue for values.
	SetContext(ctx context.Context)

	// Defer registers fn to run once the response is final. Deferred
	// functions run in reverse order, after interpreters.
	Defer(fn func())

	// Bind decodes the body into v by Content-Type and validates it.
	// Validation failures are returned as validator.ValidationErrors.
	Bind(v any) error

	// Validate runs the struct validation rules of v.
	Validate(v any) error

	// Codecs returns the body codec registry.
	Codecs() *codec.Registry

	// Transformers returns the argument transformer registry.
	Transformers() *Registry

	// JSON writes v as JSON with the given status.
	JSON(code int, v any) error

	// String writes s as plain text with the given status.
	String(code int, s string) error

	// NoContent sets the status and clears the body.
	NoContent(code int) error

	// Respond writes a handler result into the response: values are
	// serialized, errors go through the application's error handler.
	Respond(v any, err error)

	// Error creates an HTTPError without writing it.
	Error(code int, message string, opts ...HTTPErrorOption) *HTTPError

	Logger() *slog.Logger
	LogDebug(msg string, attrs ...any)
	LogInfo(msg string, attrs ...any)
	LogWarn(msg string, attrs ...any)
	LogError(msg string, attrs ...any)

	// With matches the request against p. When method is not empty it must
	// equal the request method, except that HEAD requests match GET. On
	// success the captures are recorded and With returns true.
	With(p *Pattern, method string) bool

	// Prepare records the dispatcher and handler chosen for the request.
	Prepare(d Dispatcher, handler string)

	// Execute injects and runs the prepared handler. It is a no-op when
	// nothing was prepared.
	Execute()
}

// environment holds the application-wide collaborators shared by every
// request context.
type environment struct {
	state        any
	logger       *slog.Logger
	codecs       *codec.Registry
	validator    *validator.Validator
	transformers *Registry
	errorHandler ErrorHandler
}

func defaultEnvironment() *environment {
	return &environment{
		logger:       logger.NewNope(),
		codecs:       codec.Default(),
		validator:    validator.New(),
		transformers: NewRegistry(),
	}
}

// routeInfoKey exposes the RouteInfo through Context.Value for log extractors.
type routeInfoKey struct{}

// selfKey resolves to the requestContext itself. SetContext uses it to
// detect contexts derived from the Context rather than from the request.
// Storing such a context as is would make Value loop back into itself.
type selfKey struct{}

// requestContext implements the Context interface.
type requestContext struct {
	ctx        context.Context
	request    *http.Request
	body       []byte
	response   *Response
	env        *environment
	store      *Store
	fields     map[string]any
	query      url.Values
	params     Params
	route      RouteInfo
	dispatcher Dispatcher
	handler    string
	deferred   []func()
}

func newContext(r *http.Request, body []byte, env *environment) *requestContext {
	if body == nil {
		body = []byte{}
	}
	return &requestContext{
		ctx:      r.Context(),
		request:  r,
		body:     body,
		response: NewResponse(),
		env:      env,
		store:    NewStore(),
	}
}

// NewContext builds a standalone Context over r with default collaborators
// and an optional application state. It is meant for tests and custom
// adapters; the body is read fully.
func NewContext(r *http.Request, state any) (Context, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		_ = r.Body.Close()
	}
	env := defaultEnvironment()
	env.state = state
	return newContext(withBody(r, body), body, env), nil
}

func (c *requestContext) Deadline() (time.Time, bool) {
	return c.ctx.Deadline()
}

func (c *requestContext) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *requestContext) Err() error {
	return c.ctx.Err()
}

func (c *requestContext) Value(key any) any {
	switch key.(type) {
	case routeInfoKey:
		return c.route
	case selfKey:
		return c
	}
	return c.ctx.Value(key)
}

func (c *requestContext) Request() *http.Request {
	return c.request
}

func (c *requestContext) Body() []byte {
	return c.body
}

func (c *requestContext) Response() *Response {
	return c.response
}

func (c *requestContext) Header(name string) string {
	return c.request.Header.Get(name)
}

func (c *requestContext) SetHeader(name, value string) {
	c.response.Header().Set(name, value)
}

func (c *requestContext) SetStatus(code int) {
	c.response.SetStatus(code)
}

func (c *requestContext) Params() Params {
	return c.params
}

func (c *requestContext) Param(name string) string {
	return c.params.Get(name)
}

func (c *requestContext) Query(name string) string {
	return c.QueryValues().Get(name)
}

func (c *requestContext) QueryValues() url.Values {
	if c.query == nil {
		c.query = c.request.URL.Query()
	}
	return c.query
}

func (c *requestContext) Route() RouteInfo {
	return c.route
}

func (c *requestContext) Store() *Store {
	return c.store
}

func (c *requestContext) Set(key string, v any) error {
	return c.store.Set(key, v)
}

func (c *requestContext) Get(key string, dst any) bool {
	return c.store.Get(key, dst)
}

func (c *requestContext) State() any {
	return c.env.state
}

func (c *requestContext) Field(name string) (any, bool) {
	v, ok := c.fields[name]
	return v, ok
}

func (c *requestContext) SetField(name string, v any) {
	if c.fields == nil {
		c.fields = make(map[string]any)
	}
	c.fields[name] = v
}

func (c *requestContext) SetValue(key, val any) {
	c.SetContext(context.WithValue(c.ctx, key, val))
}

func (c *requestContext) SetContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	if ctx.Value(selfKey{}) == c {
		ctx = c.rebase(ctx)
	}
	c.ctx = ctx
	c.request = c.request.WithContext(ctx)
}

// rebase builds a child of the current request context that carries the
// deadline of derived and is cancelled together with it. The returned
// context never refers to c.
func (c *requestContext) rebase(derived context.Context) context.Context {
	next := c.ctx
	cancelDeadline := context.CancelFunc(func() {})
	if d, ok := derived.Deadline(); ok {
		next, cancelDeadline = context.WithDeadline(next, d)
	}
	next, cancel := context.WithCancelCause(next)

	// An expired deadline is reported by next's own timer, so Err stays
	// DeadlineExceeded.
	stop := context.AfterFunc(derived, func() {
		if !errors.Is(derived.Err(), context.DeadlineExceeded) {
			cancel(context.Cause(derived))
		}
	})
	c.Defer(func() {
		stop()
		cancel(nil)
		cancelDeadline()
	})
	return next
}

func (c *requestContext) Defer(fn func()) {
	if fn != nil {
		c.deferred = append(c.deferred, fn)
	}
}

func (c *requestContext) runDeferred() {
	for i := len(c.deferred) - 1; i >= 0; i-- {
		c.deferred[i]()
	}
	c.deferred = nil
}

func (c *requestContext) Bind(v any) error {
	if err := c.env.codecs.Decode(c.Header("Content-Type"), c.body, v); err != nil {
		return err
	}
	return c.env.validator.Validate(v)
}

func (c *requestContext) Validate(v any) error {
	return c.env.validator.Validate(v)
}

func (c *requestContext) Codecs() *codec.Registry {
	return c.env.codecs
}

func (c *requestContext) Transformers() *Registry {
	return c.env.transformers
}

func (c *requestContext) JSON(code int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.response.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.response.SetStatus(code)
	c.response.SetBody(data)
	return nil
}

func (c *requestContext) String(code int, s string) error {
	c.response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.response.SetStatus(code)
	c.response.SetBody([]byte(s))
	return nil
}

func (c *requestContext) NoContent(code int) error {
	c.response.SetStatus(code)
	c.response.SetBody(nil)
	return nil
}

func (c *requestContext) Respond(v any, err error) {
	if err != nil {
		if c.env.errorHandler != nil {
			c.env.errorHandler(c, err)
			return
		}
		DefaultErrorHandler(c, err)
		return
	}
	if werr := writeValue(c.response, v); werr != nil {
		c.LogError("failed to serialize response", slog.Any("error", werr))
		c.response.Reset()
		c.response.SetStatus(http.StatusInternalServerError)
	}
}

func (c *requestContext) Error(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(code, message, opts...)
}

func (c *requestContext) Logger() *slog.Logger {
	return c.env.logger
}

func (c *requestContext) LogDebug(msg string, attrs ...any) {
	c.env.logger.DebugContext(c, msg, attrs...)
}

func (c *requestContext) LogInfo(msg string, attrs ...any) {
	c.env.logger.InfoContext(c, msg, attrs...)
}

func (c *requestContext) LogWarn(msg string, attrs ...any) {
	c.env.logger.WarnContext(c, msg, attrs...)
}

func (c *requestContext) LogError(msg string, attrs ...any) {
	c.env.logger.ErrorContext(c, msg, attrs...)
}

func (c *requestContext) With(p *Pattern, method string) bool {
	if p == nil || !methodMatches(method, c.request.Method) {
		return false
	}
	params, ok := p.Match(c.request.URL.Path)
	if !ok {
		return false
	}
	c.params = params
	return true
}

func (c *requestContext) Prepare(d Dispatcher, handler string) {
	c.dispatcher = d
	c.handler = handler
}

func (c *requestContext) Execute() {
	if c.dispatcher == nil {
		return
	}
	if err := c.dispatcher.Inject(c); err != nil {
		c.LogDebug("injection failed", slog.Any("error", err))
		return
	}
	c.dispatcher.Handle(c.handler, c)
}

// methodMatches reports whether a request method satisfies a route method.
// An empty route method accepts any request; HEAD requests match GET routes.
func methodMatches(route, request string) bool {
	switch route {
	case "", request:
		return true
	case http.MethodGet:
		return request == http.MethodHead
	}
	return false
}
