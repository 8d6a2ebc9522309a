// Package conduit provides a small modular framework for HTTP applications.
//
// An application is a table of routes answered by controllers. Controllers
// group named handlers under a prefix together with their middleware, gates
// and injected fields. Modules bundle controllers and import other modules.
// The same App runs behind the standard TCP server, a serverless function
// or a WebSocket connection.
//
// # Quick Start
//
//	users := conduit.NewController("users", conduit.Prefix("/users"))
//	users.Get("show", "/<id>", func(c conduit.Context) (any, error) {
//	    return map[string]string{"id": c.Param("id")}, nil
//	})
//
//	app := conduit.New(
//	    conduit.WithLogger("api", middlewares.RequestIDExtractor()),
//	    conduit.WithMiddleware(middlewares.RequestID()),
//	    conduit.WithControllers(users),
//	)
//
//	if err := app.Listen(":8080"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Patterns
//
// Route patterns are slash-separated segments. A segment is a literal, a
// named capture written <name>, or a single * wildcard that swallows one or
// more segments:
//
//	/users/<id>          matches /users/42
//	/files/*/raw         matches /files/a/b/raw
//	/                    matches only the root
//
// Leading and trailing slashes are ignored. Routes are checked in
// registration order and the first match wins.
//
// # Handlers
//
// A handler returns a value and an error. Strings and byte slices are
// written as-is, other values as JSON, and errors go through the error
// handler. Bind0..Bind4 adapt typed functions whose arguments are resolved
// per request:
//
//	type CreateUser struct {
//	    Email string `json:"email" validate:"required,email"`
//	}
//
//	users.Post("create", "/", conduit.Bind2(
//	    func(in conduit.Dto[CreateUser], deps *Deps) (User, error) {
//	        return deps.Users.Create(in.Value.Email)
//	    },
//	))
//
// Dto answers 400, 415 or 422 on its own when the body cannot be decoded
// or fails validation.
//
// # Middleware, Gates and Interpreters
//
// Middleware runs before the handler and may end the request by setting a
// response. Gates return false to reject a request. Interpreters run after
// the response is final and must not change it.
//
// # Runtime
//
// Listen serves the App over TCP with graceful shutdown on SIGINT or
// SIGTERM. Serve accepts any Transport, which is how the fasthttp adapter
// plugs in. The platform packages adapt the same App to serverless
// invocations and WebSocket connections.
package conduit
