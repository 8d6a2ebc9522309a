// Package gates provides reusable gates for Conduit controllers.
//
// A gate runs after middleware and before the handler. When it rejects a
// request it writes the rejection through the application's error handler
// and the handler is skipped.
//
//	api := conduit.NewController("api",
//	    conduit.Prefix("/api"),
//	    conduit.Guard(
//	        gates.RequireHeader("Authorization"),
//	        gates.RateLimit(10, 20, gates.WithKey(conduit.NewExtractor(conduit.FromBearerToken()))),
//	    ),
//	)
//
// Host limits a controller to some hosts, for example a tenant area served
// on subdomains:
//
//	tenants := conduit.NewController("tenants", conduit.Guard(gates.Host("*.example.com")))
package gates
