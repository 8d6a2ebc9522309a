// Package middlewares provides middleware for Conduit applications.
//
// Middleware runs on matched requests only, after the route is selected and
// before the controller. It cannot stop the pipeline; use gates for that.
//
// # Request ID
//
// RequestID assigns an ID to each request. An incoming X-Request-ID or
// X-Correlation-ID header is reused, otherwise a UUIDv7 is generated.
//
//	app := conduit.New(
//	    conduit.WithLogger("api", middlewares.RequestIDExtractor()),
//	    conduit.WithMiddleware(middlewares.RequestID()),
//	)
//
// # CORS
//
// CORS adds Cross-Origin Resource Sharing headers. Preflight requests need
// an OPTIONS route, which Preflight provides:
//
//	app := conduit.New(
//	    conduit.WithMiddleware(middlewares.CORS(
//	        middlewares.CORSOrigins("https://app.example.com"),
//	        middlewares.CORSCredentials(),
//	    )),
//	)
//	app.Route("*", http.MethodOptions, middlewares.Preflight)
//
// # Timeout
//
// Timeout puts a deadline on the request context. Handlers should pass the
// Context to blocking calls and return its error when it expires.
//
// # Tracing
//
// Tracing starts an OpenTelemetry server span named after the route pattern
// and ends it with the final status.
//
// # Access Log
//
// AccessLog is both a Middleware and an Interpreter and logs one record per
// request:
//
//	access := middlewares.AccessLog(logger)
//	app := conduit.New(
//	    conduit.WithMiddleware(access),
//	    conduit.WithInterpreters(access),
//	)
//
// # Recommended Order
//
//	conduit.WithMiddleware(
//	    middlewares.RequestID(),
//	    middlewares.Tracing(),
//	    middlewares.CORS(),
//	    middlewares.Timeout(5*time.Second),
//	)
package middlewares
