// Package logger builds slog loggers for conduit applications.
//
// Every logger produced here is wrapped in a ContextHandler that runs a list of
// ContextExtractor functions on each record, so request-scoped values such as
// the request id or the matched route end up on every line logged with a
// request context:
//
//	log := logger.New(middlewares.RequestIDExtractor(), conduit.RouteExtractor())
//	log.InfoContext(c, "item created", slog.String("id", id))
//	// {"level":"INFO","msg":"item created","id":"42","request_id":"...","handler":"create"}
//
// Output format and level come from Config, which can be loaded from the
// environment with pkg/config:
//
//	cfg := config.MustLoad[logger.Config]()
//	log := logger.NewWithConfig(cfg, os.Stdout, extractors...)
//
// NewWithSentry additionally forwards warnings and errors to Sentry. An empty DSN
// or a failed Sentry initialization falls back to stdout only.
package logger
