package internal

import (
	"fmt"
	"strings"
)

// Route is a single (pattern, method, handler) registration.
// An empty Method matches every request method.
type Route struct {
	Pattern *Pattern
	Target  Dispatcher
	Method  string
	Handler string
	// Controller is the name of the controller owning the handler.
	Controller string
}

// RouteTable is an ordered list of routes searched linearly.
// The first matching route wins. It is not safe for concurrent mutation;
// the App freezes it before serving.
type RouteTable struct {
	routes []Route
	keys   map[string]struct{}
}

// NewRouteTable returns an empty table.
func NewRouteTable() *RouteTable {
	return &RouteTable{keys: make(map[string]struct{})}
}

// Add appends a route. It fails with ErrMalformedPattern or ErrInvalidMethod
// on bad input and with ErrDuplicateRoute when a route with the same method
// and an equivalent pattern already exists.
func (t *RouteTable) Add(pattern, method string, target Dispatcher, handler string) error {
	return t.add(pattern, method, target, handler, "")
}

func (t *RouteTable) add(pattern, method string, target Dispatcher, handler, controller string) error {
	p, err := CompilePattern(pattern)
	if err != nil {
		return err
	}
	method, err = normalizeMethod(method)
	if err != nil {
		return err
	}

	key := method + " " + p.shape()
	if _, dup := t.keys[key]; dup {
		return fmt.Errorf("%w: %s %s", ErrDuplicateRoute, displayMethod(method), p)
	}
	t.keys[key] = struct{}{}
	t.routes = append(t.routes, Route{
		Pattern:    p,
		Method:     method,
		Target:     target,
		Handler:    handler,
		Controller: controller,
	})
	return nil
}

// Lookup returns the first route matching method and path.
func (t *RouteTable) Lookup(method, path string) (Route, Params, bool) {
	for _, r := range t.routes {
		if !methodMatches(r.Method, method) {
			continue
		}
		if params, ok := r.Pattern.Match(path); ok {
			return r, params, true
		}
	}
	return Route{}, nil, false
}

// Routes returns a copy of the registered routes in insertion order.
func (t *RouteTable) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

func (t *RouteTable) Len() int {
	return len(t.routes)
}

// Contains reports whether some route matches method and path.
func (t *RouteTable) Contains(method, path string) bool {
	_, _, ok := t.Lookup(method, path)
	return ok
}

func normalizeMethod(method string) (string, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" || method == "*" {
		return "", nil
	}
	for _, r := range method {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidMethod, method)
		}
	}
	return method, nil
}

func displayMethod(method string) string {
	if method == "" {
		return "ANY"
	}
	return method
}
