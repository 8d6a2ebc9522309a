// Package internal provides the core types and implementation for the Conduit framework.
//
// This package is internal and should not be used directly. Import "github.com/dmitrymomot/conduit"
// instead, which re-exports the public API.
//
// # Core Types
//
//   - App: owns the route table, global middleware, interpreters and state
//   - Context: request, response, captures, store and state for one request
//   - Controller: named handlers under a prefix with middleware, guards and injections
//   - Module: groups controllers and imports other modules
//   - Pattern: compiled URI pattern with literal, <capture> and * segments
//   - RouteTable: ordered route list scanned linearly; first match wins
//   - Registry: argument transformers keyed by type
//   - Response: buffered status, headers and body
//
// # Request Pipeline
//
// App.Respond drives a request through these stages:
//
//  1. The body is read once, up to the configured limit.
//  2. The route table is scanned; a miss answers 404 without running middleware.
//  3. Global middleware runs in insertion order and may short-circuit.
//  4. The controller injects its fields, then runs its own middleware,
//     guards and handler gates. A gate returning false ends the request.
//  5. The handler result is written through the Response helpers, or the
//     error goes to the error handler.
//  6. Interpreters observe the final response, then deferred functions run.
//
// Handlers are plain functions, or typed functions adapted by Bind0..Bind4:
//
//	users := internal.NewController("users", internal.Prefix("/users"))
//	users.Get("show", "/<id>", internal.Bind1(func(p internal.Params) (User, error) {
//	    return repo.Find(p.Get("id"))
//	}))
//
// Bind resolves each argument through the transformer registry, then a
// FromContext method on the pointer type, then the application state. A
// failed resolution sets the status and skips the handler.
//
// # Context as context.Context
//
// Context embeds context.Context, so it can be passed to any function that
// expects one. Deadline, Done, Err and Value delegate to the request context,
// which middleware may replace with SetContext. A context derived from the
// Context itself, such as context.WithTimeout(c, d), is accepted and keeps
// its deadline and cancellation.
//
// # Default Status
//
// Controller endpoints answer 201 for a GET path other than "/" and 200
// otherwise. HTTPCode overrides the default; a status set by middleware or
// by the handler always wins.
package internal
