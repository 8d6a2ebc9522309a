package internal

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync/atomic"
)

// ControllerRoute is a route declared by a controller.
type ControllerRoute struct {
	Path    string
	Method  string
	Handler string
}

type endpoint struct {
	method string
	local  string
	full   string
}

type handlerEntry struct {
	fn        HandlerFunc
	name      string
	endpoints []endpoint
	gates     []Gate
	code      int
}

type injection struct {
	fn   Transformer
	name string
}

type stateRequirement struct {
	check func(state any) bool
	name  string
}

// Controller groups handlers under a shared path prefix.
//
// A controller is shared by all requests. Its configuration is fixed once it
// is mounted on an App; per-request data such as injected fields lives in
// the Context.
//
// Example:
//
//	users := conduit.NewController("users",
//	    conduit.Prefix("/users"),
//	    conduit.Guard(auth),
//	)
//	users.Get("show", "/<id>", conduit.Bind1(svc.Show))
//	users.Post("create", "/", conduit.Bind1(svc.Create))
type Controller struct {
	handlers    map[string]*handlerEntry
	name        string
	prefix      string
	middlewares []Middleware
	guards      []Gate
	injections  []injection
	states      []stateRequirement
	order       []string
	errs        []error
	frozen      atomic.Bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// Prefix sets the path prefix shared by all routes. Defaults to "/".
func Prefix(p string) ControllerOption {
	return func(ctl *Controller) {
		ctl.prefix = JoinPath(p, "")
	}
}

// Use appends controller middleware. It runs after global middleware and
// before gates.
func Use(mw ...Middleware) ControllerOption {
	return func(ctl *Controller) {
		for _, m := range mw {
			if m != nil {
				ctl.middlewares = append(ctl.middlewares, m)
			}
		}
	}
}

// Guard appends gates evaluated before every handler of the controller.
func Guard(gates ...Gate) ControllerOption {
	return func(ctl *Controller) {
		for _, g := range gates {
			if g != nil {
				ctl.guards = append(ctl.guards, g)
			}
		}
	}
}

// Inject declares a per-request field produced by fn before the handler
// runs. Handlers read it with Injected.
func Inject(name string, fn Transformer) ControllerOption {
	return func(ctl *Controller) {
		if fn != nil {
			ctl.injections = append(ctl.injections, injection{name: name, fn: fn})
		}
	}
}

// InjectType declares a per-request field resolved like a handler argument
// of type T.
func InjectType[T any](name string) ControllerOption {
	return Inject(name, func(c Context) (any, error) {
		return Resolve[T](c)
	})
}

// RequireState makes App.Build fail with ErrMissingState unless the
// application state is a T.
func RequireState[T any]() ControllerOption {
	return func(ctl *Controller) {
		ctl.states = append(ctl.states, stateRequirement{
			name: reflect.TypeFor[T]().String(),
			check: func(state any) bool {
				_, ok := state.(T)
				return ok
			},
		})
	}
}

// NewController creates a controller with the given name.
func NewController(name string, opts ...ControllerOption) *Controller {
	ctl := &Controller{
		name:     name,
		prefix:   "/",
		handlers: make(map[string]*handlerEntry),
	}
	for _, opt := range opts {
		opt(ctl)
	}
	return ctl
}

// HandlerOption configures a handler registration.
type HandlerOption func(*handlerEntry)

// On binds the handler to method for each local path. An empty method
// matches any request method.
func On(method string, paths ...string) HandlerOption {
	return func(h *handlerEntry) {
		if len(paths) == 0 {
			paths = []string{"/"}
		}
		for _, p := range paths {
			h.endpoints = append(h.endpoints, endpoint{method: method, local: p})
		}
	}
}

// Check appends gates evaluated for this handler after the controller guards.
func Check(gates ...Gate) HandlerOption {
	return func(h *handlerEntry) {
		for _, g := range gates {
			if g != nil {
				h.gates = append(h.gates, g)
			}
		}
	}
}

// HTTPCode replaces the default status of the handler. A status set
// explicitly during the request still wins.
func HTTPCode(code int) HandlerOption {
	return func(h *handlerEntry) {
		h.code = code
	}
}

func (ctl *Controller) Name() string {
	return ctl.name
}

// Prefix returns the canonical path prefix.
func (ctl *Controller) Prefix() string {
	return ctl.prefix
}

// Add registers a handler under name. Configuration problems are kept
// and reported by Err and App.Build.
func (ctl *Controller) Add(name string, fn HandlerFunc, opts ...HandlerOption) *Controller {
	switch {
	case ctl.frozen.Load():
		ctl.errs = append(ctl.errs, fmt.Errorf("%w: cannot add %q to mounted controller %q", ErrAppFrozen, name, ctl.name))
		return ctl
	case fn == nil:
		ctl.errs = append(ctl.errs, fmt.Errorf("%w: %s.%s", ErrNilHandler, ctl.name, name))
		return ctl
	}
	if _, dup := ctl.handlers[name]; dup {
		ctl.errs = append(ctl.errs, fmt.Errorf("%w: %s.%s", ErrDuplicateHandler, ctl.name, name))
		return ctl
	}

	h := &handlerEntry{name: name, fn: fn}
	for _, opt := range opts {
		opt(h)
	}
	if len(h.endpoints) == 0 {
		ctl.errs = append(ctl.errs, fmt.Errorf("%w: %s.%s", ErrNoEndpoint, ctl.name, name))
		return ctl
	}

	for i := range h.endpoints {
		ep := &h.endpoints[i]
		p, err := CompilePattern(JoinPath(ctl.prefix, ep.local))
		if err != nil {
			ctl.errs = append(ctl.errs, fmt.Errorf("%s.%s: %w", ctl.name, name, err))
			return ctl
		}
		method, err := normalizeMethod(ep.method)
		if err != nil {
			ctl.errs = append(ctl.errs, fmt.Errorf("%s.%s: %w", ctl.name, name, err))
			return ctl
		}
		ep.full = p.String()
		ep.method = method
	}

	ctl.handlers[name] = h
	ctl.order = append(ctl.order, name)
	return ctl
}

func (ctl *Controller) Get(name, path string, fn HandlerFunc, opts ...HandlerOption) *Controller {
	return ctl.Add(name, fn, append([]HandlerOption{On(http.MethodGet, path)}, opts...)...)
}

func (ctl *Controller) Post(name, path string, fn HandlerFunc, opts ...HandlerOption) *Controller {
	return ctl.Add(name, fn, append([]HandlerOption{On(http.MethodPost, path)}, opts...)...)
}

func (ctl *Controller) Put(name, path string, fn HandlerFunc, opts ...HandlerOption) *Controller {
	return ctl.Add(name, fn, append([]HandlerOption{On(http.MethodPut, path)}, opts...)...)
}

func (ctl *Controller) Patch(name, path string, fn HandlerFunc, opts ...HandlerOption) *Controller {
	return ctl.Add(name, fn, append([]HandlerOption{On(http.MethodPatch, path)}, opts...)...)
}

func (ctl *Controller) Delete(name, path string, fn HandlerFunc, opts ...HandlerOption) *Controller {
	return ctl.Add(name, fn, append([]HandlerOption{On(http.MethodDelete, path)}, opts...)...)
}

func (ctl *Controller) Head(name, path string, fn HandlerFunc, opts ...HandlerOption) *Controller {
	return ctl.Add(name, fn, append([]HandlerOption{On(http.MethodHead, path)}, opts...)...)
}

func (ctl *Controller) Options(name, path string, fn HandlerFunc, opts ...HandlerOption) *Controller {
	return ctl.Add(name, fn, append([]HandlerOption{On(http.MethodOptions, path)}, opts...)...)
}

// Any registers a handler matching every request method.
func (ctl *Controller) Any(name, path string, fn HandlerFunc, opts ...HandlerOption) *Controller {
	return ctl.Add(name, fn, append([]HandlerOption{On("", path)}, opts...)...)
}

// Routes returns every (path, method, handler) the controller declares,
// in registration order.
func (ctl *Controller) Routes() []ControllerRoute {
	var routes []ControllerRoute
	for _, name := range ctl.order {
		routes = append(routes, ctl.routesOf(name)...)
	}
	return routes
}

func (ctl *Controller) routesOf(name string) []ControllerRoute {
	h, ok := ctl.handlers[name]
	if !ok {
		return nil
	}
	routes := make([]ControllerRoute, 0, len(h.endpoints))
	for _, ep := range h.endpoints {
		routes = append(routes, ControllerRoute{Path: ep.full, Method: ep.method, Handler: name})
	}
	return routes
}

// Err returns the configuration errors collected so far.
func (ctl *Controller) Err() error {
	return joinErrors(ctl.errs)
}

func (ctl *Controller) checkState(state any) error {
	var errs []error
	for _, req := range ctl.states {
		if !req.check(state) {
			errs = append(errs, fmt.Errorf("%w: controller %q needs %s", ErrMissingState, ctl.name, req.name))
		}
	}
	return joinErrors(errs)
}

func (ctl *Controller) freeze() {
	ctl.frozen.Store(true)
}

// Inject evaluates the declared injections in order and records them on c.
// The first failure stops injection; the handler must not run.
func (ctl *Controller) Inject(c Context) error {
	for _, inj := range ctl.injections {
		v, err := inj.fn(c)
		if err != nil {
			if !c.Response().StatusSet() {
				c.SetStatus(http.StatusInternalServerError)
			}
			return fmt.Errorf("%w: inject %s.%s: %w", ErrHandlerSkipped, ctl.name, inj.name, err)
		}
		c.SetField(inj.name, v)
	}
	return nil
}

// Handle runs the named handler: it applies the default status, runs the
// controller middleware, evaluates gates, calls the handler and writes its
// result.
func (ctl *Controller) Handle(name string, c Context) {
	h, ok := ctl.handlers[name]
	if !ok {
		c.LogWarn("unknown handler", "controller", ctl.name, "handler", name)
		c.SetStatus(http.StatusNotFound)
		return
	}

	c.Response().defaultStatus(ctl.defaultStatus(h, c.Route()))

	for _, mw := range ctl.middlewares {
		mw.Handle(c)
	}

	for _, g := range ctl.guards {
		if !g.Check(c) {
			c.LogDebug("request rejected by gate", "controller", ctl.name, "handler", name)
			return
		}
	}
	for _, g := range h.gates {
		if !g.Check(c) {
			c.LogDebug("request rejected by gate", "controller", ctl.name, "handler", name)
			return
		}
	}

	v, err := h.fn(c)
	if isSkipped(err) {
		return
	}
	c.Respond(v, err)
}

// defaultStatus is 201 for GET endpoints whose local path is not the root
// and 200 otherwise, unless the handler declares HTTPCode.
func (ctl *Controller) defaultStatus(h *handlerEntry, route RouteInfo) int {
	if h.code > 0 {
		return h.code
	}
	ep := h.endpoints[0]
	for _, e := range h.endpoints {
		if e.full == route.Pattern && e.method == route.Method {
			ep = e
			break
		}
	}
	if ep.method == http.MethodGet && strings.Trim(ep.local, "/") != "" {
		return http.StatusCreated
	}
	return http.StatusOK
}
