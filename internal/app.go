package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/conduit/pkg/health"
)

// DefaultMaxBodySize bounds the buffered request body.
const DefaultMaxBodySize int64 = 10 << 20 // 10MB

// App is the request-processing engine. It owns the route table, the
// global middleware list, interpreters and the application state.
//
// Configuration happens through options and the registration methods. The
// first call to Build, Respond, ServeHTTP or Listen freezes the App; later
// registrations are rejected with ErrAppFrozen.
type App struct {
	env          *environment
	routes       *RouteTable
	root         *Controller
	health       *healthConfig
	metrics      http.Handler
	buildErr     error
	middlewares  []Middleware
	interpreters []Interpreter
	controllers  []*Controller
	imported     map[*Module]struct{}
	errs         []error
	metricsPath  string
	maxBodySize  int64
	mu           sync.Mutex
	buildOnce    sync.Once
	built        atomic.Bool
	stateSet     bool
}

// New creates an application with the given options.
//
// Example:
//
//	app := conduit.New(
//	    conduit.WithLogger("api", middlewares.RequestIDExtractor()),
//	    conduit.WithMiddleware(middlewares.RequestID()),
//	    conduit.WithControllers(users, orders),
//	    conduit.WithState(&deps),
//	)
func New(opts ...Option) *App {
	a := &App{
		env:         defaultEnvironment(),
		routes:      NewRouteTable(),
		root:        NewController("app"),
		imported:    make(map[*Module]struct{}),
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.env.logger
}

// Route registers fn for method and pattern. An empty method matches any
// request method. App routes answer 200 unless the handler sets a status.
func (a *App) Route(pattern, method string, fn HandlerFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rejectFrozen("route " + pattern) {
		return
	}

	name := fmt.Sprintf("#%d %s %s", len(a.root.order), displayMethod(strings.ToUpper(method)), pattern)
	before := len(a.root.errs)
	a.root.Add(name, fn, On(method, pattern), HTTPCode(http.StatusOK))
	if len(a.root.errs) > before {
		a.errs = append(a.errs, a.root.errs[before:]...)
		return
	}
	a.addRoutes(a.root, a.root.routesOf(name))
}

func (a *App) Get(pattern string, fn HandlerFunc)    { a.Route(pattern, http.MethodGet, fn) }
func (a *App) Post(pattern string, fn HandlerFunc)   { a.Route(pattern, http.MethodPost, fn) }
func (a *App) Put(pattern string, fn HandlerFunc)    { a.Route(pattern, http.MethodPut, fn) }
func (a *App) Patch(pattern string, fn HandlerFunc)  { a.Route(pattern, http.MethodPatch, fn) }
func (a *App) Delete(pattern string, fn HandlerFunc) { a.Route(pattern, http.MethodDelete, fn) }
func (a *App) Head(pattern string, fn HandlerFunc)   { a.Route(pattern, http.MethodHead, fn) }

// Any registers fn for every request method.
func (a *App) Any(pattern string, fn HandlerFunc) { a.Route(pattern, "", fn) }

// Use appends global middleware. It runs in insertion order on every
// matched request.
func (a *App) Use(mw ...Middleware) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rejectFrozen("middleware") {
		return
	}
	for _, m := range mw {
		if m != nil {
			a.middlewares = append(a.middlewares, m)
		}
	}
}

// UseInterpreter appends response interpreters.
func (a *App) UseInterpreter(in ...Interpreter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rejectFrozen("interpreter") {
		return
	}
	for _, i := range in {
		if i != nil {
			a.interpreters = append(a.interpreters, i)
		}
	}
}

// SetState installs the application state. It may be called once.
func (a *App) SetState(state any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rejectFrozen("state") {
		return
	}
	if a.stateSet {
		a.errs = append(a.errs, ErrStateAlreadySet)
		return
	}
	a.stateSet = true
	a.env.state = state
}

// Mount registers the routes of each controller in declaration order and
// freezes the controllers.
func (a *App) Mount(ctls ...*Controller) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mount(ctls...)
}

func (a *App) mount(ctls ...*Controller) {
	if a.rejectFrozen("controller") {
		return
	}
	for _, ctl := range ctls {
		if ctl == nil {
			continue
		}
		ctl.freeze()
		a.controllers = append(a.controllers, ctl)
		a.addRoutes(ctl, ctl.Routes())
	}
}

func (a *App) addRoutes(ctl *Controller, routes []ControllerRoute) {
	for _, r := range routes {
		if err := a.routes.add(r.Path, r.Method, ctl, r.Handler, ctl.name); err != nil {
			a.errs = append(a.errs, err)
		}
	}
}

func (a *App) rejectFrozen(what string) bool {
	if !a.built.Load() {
		return false
	}
	a.env.logger.Error("registration after build ignored", slog.String("what", what), slog.Any("error", ErrAppFrozen))
	return true
}

// Routes returns the route table in lookup order.
func (a *App) Routes() []Route {
	return a.routes.Routes()
}

// Build validates the configuration and freezes the App. It reports every
// configuration error at once. Calling it again returns the same result.
func (a *App) Build() error {
	a.buildOnce.Do(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		errs := append([]error(nil), a.errs...)
		for _, ctl := range a.controllers {
			if err := ctl.Err(); err != nil {
				errs = append(errs, err)
			}
			if err := ctl.checkState(a.env.state); err != nil {
				errs = append(errs, err)
			}
		}
		a.root.freeze()
		a.built.Store(true)
		a.buildErr = joinErrors(errs)
		if a.buildErr != nil {
			a.env.logger.Error("application configuration is invalid", slog.Any("error", a.buildErr))
		}
	})
	return a.buildErr
}

// Respond runs the pipeline for r and returns the final response.
func (a *App) Respond(r *http.Request) *Response {
	if err := a.Build(); err != nil {
		resp := NewResponse()
		resp.SetStatus(http.StatusInternalServerError)
		return resp
	}

	body, readErr := readBody(r, a.maxBodySize)
	c := newContext(withBody(r, body), body, a.env)
	defer c.runDeferred()

	if readErr != nil {
		if errors.Is(readErr, ErrBodyTooLarge) {
			c.response.SetStatus(http.StatusRequestEntityTooLarge)
		} else {
			c.LogDebug("failed to read request body", slog.Any("error", readErr))
			c.response.SetStatus(http.StatusBadRequest)
		}
	} else {
		a.dispatch(c)
	}

	a.interpret(c)
	return c.response
}

// ServeHTTP implements http.Handler over Respond.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := a.Respond(r)
	if err := resp.Send(w); err != nil {
		a.env.logger.DebugContext(r.Context(), "failed to write response", slog.Any("error", err))
	}
}

// Handler returns the HTTP handler served by Listen: health and metrics
// endpoints outside the pipeline, and the pipeline for every other path.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	if a.health != nil {
		r.Get(a.health.livenessPath, health.LivenessHandler())
		r.Get(a.health.readinessPath, health.ReadinessHandler(a.health.checks, health.WithLogger(a.env.logger)))
	}
	if a.metrics != nil {
		r.Method(http.MethodGet, a.metricsPath, a.metrics)
	}
	r.Handle("/*", a)
	return r
}

func (a *App) dispatch(c *requestContext) {
	defer func() {
		if v := recover(); v != nil {
			a.recoverPanic(c, v)
		}
	}()

	route, ok := a.match(c)
	if !ok {
		c.response.SetStatus(http.StatusNotFound)
		return
	}

	for _, mw := range a.middlewares {
		mw.Handle(c)
	}

	if err := c.Err(); err != nil {
		a.abort(c, err)
		return
	}

	c.Prepare(route.Target, route.Handler)
	c.Execute()
}

func (a *App) match(c *requestContext) (Route, bool) {
	for _, r := range a.routes.routes {
		if c.With(r.Pattern, r.Method) {
			c.route = RouteInfo{
				Controller: r.Controller,
				Handler:    r.Handler,
				Pattern:    r.Pattern.String(),
				Method:     r.Method,
			}
			return r, true
		}
	}
	return Route{}, false
}

// abort answers a request whose context ended before the handler ran.
func (a *App) abort(c *requestContext, err error) {
	c.LogDebug("request cancelled before dispatch", slog.Any("error", err))
	if errors.Is(err, context.DeadlineExceeded) {
		c.response.Reset()
		c.response.SetStatus(http.StatusServiceUnavailable)
	}
}

func (a *App) recoverPanic(c *requestContext, v any) {
	perr := &PanicError{Value: v, Stack: debug.Stack()}
	c.LogError("panic recovered",
		slog.Any("error", perr),
		slog.String("stack", string(perr.Stack)),
	)
	c.response.Reset()
	c.response.SetStatus(http.StatusInternalServerError)
	if a.env.errorHandler != nil {
		a.env.errorHandler(c, perr)
	}
}

func (a *App) interpret(c *requestContext) {
	for _, in := range a.interpreters {
		func() {
			defer func() {
				if v := recover(); v != nil {
					c.LogError("interpreter panicked", slog.Any("panic", v))
				}
			}()
			in.Interpret(c)
		}()
	}
}

func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return []byte{}, nil
	}
	defer r.Body.Close()

	if limit <= 0 {
		return io.ReadAll(r.Body)
	}
	if r.ContentLength > limit {
		return nil, ErrBodyTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}

// withBody returns a shallow copy of r whose Body reads the buffered bytes.
func withBody(r *http.Request, body []byte) *http.Request {
	r2 := new(http.Request)
	*r2 = *r
	r2.Body = io.NopCloser(bytes.NewReader(body))
	r2.ContentLength = int64(len(body))
	return r2
}

func isSkipped(err error) bool {
	return err != nil && errors.Is(err, ErrHandlerSkipped)
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
