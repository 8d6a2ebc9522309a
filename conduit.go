package conduit

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"github.com/dmitrymomot/conduit/internal"
	"github.com/dmitrymomot/conduit/pkg/codec"
	"github.com/dmitrymomot/conduit/pkg/health"
	"github.com/dmitrymomot/conduit/pkg/logger"
	"github.com/dmitrymomot/conduit/pkg/validator"
)

// Type aliases - public API
type (
	// App is the request-processing engine.
	// It owns the route table, global middleware, interpreters and state.
	App = internal.App

	// Context carries one request through the pipeline.
	Context = internal.Context

	// Controller groups named handlers under a path prefix.
	Controller = internal.Controller

	// ControllerRoute describes one endpoint declared by a controller.
	ControllerRoute = internal.ControllerRoute

	// Module groups controllers and imports other modules.
	Module = internal.Module

	// HandlerFunc is the signature for route handlers.
	HandlerFunc = internal.HandlerFunc

	// ErrorHandler handles errors returned from handlers.
	ErrorHandler = internal.ErrorHandler

	// Middleware runs before the handler and may short-circuit the request.
	Middleware = internal.Middleware

	// MiddlewareFunc adapts a function to Middleware.
	MiddlewareFunc = internal.MiddlewareFunc

	// Gate decides whether a request may reach a handler.
	Gate = internal.Gate

	// GateFunc adapts a function to Gate.
	GateFunc = internal.GateFunc

	// Interpreter observes the final response of every request.
	Interpreter = internal.Interpreter

	// InterpreterFunc adapts a function to Interpreter.
	InterpreterFunc = internal.InterpreterFunc

	// ResponseWriterTo is a handler result that writes itself.
	ResponseWriterTo = internal.ResponseWriterTo

	// Response is the buffered response under construction.
	Response = internal.Response

	// Pattern is a compiled URI pattern.
	Pattern = internal.Pattern

	// Param is a single named capture.
	Param = internal.Param

	// Params holds the captures of the matched route.
	Params = internal.Params

	// Route is one entry of the route table.
	Route = internal.Route

	// RouteTable is the ordered list of routes.
	RouteTable = internal.RouteTable

	// RouteInfo describes the route selected for a request.
	RouteInfo = internal.RouteInfo

	// Store is the per-request key/value store.
	Store = internal.Store

	// Transformer resolves a handler argument from the request.
	Transformer = internal.Transformer

	// TransformerRegistry holds transformers keyed by type.
	TransformerRegistry = internal.Registry

	// ContextLoader is implemented by argument types that load themselves.
	ContextLoader = internal.ContextLoader

	// Query is the parsed query string as a handler argument.
	Query = internal.Query

	// Body is the buffered request body as a handler argument.
	Body = internal.Body

	// Dto decodes and validates the request body into T.
	Dto[T any] = internal.Dto[T]

	// ParamsOf decodes and validates the route captures into T.
	ParamsOf[T any] = internal.ParamsOf[T]

	// QueryOf decodes and validates the query string into T.
	QueryOf[T any] = internal.QueryOf[T]

	// Option configures the application.
	Option = internal.Option

	// ControllerOption configures a controller.
	ControllerOption = internal.ControllerOption

	// HandlerOption configures a single controller handler.
	HandlerOption = internal.HandlerOption

	// ModuleOption configures a module.
	ModuleOption = internal.ModuleOption

	// RunOption configures the server runtime.
	RunOption = internal.RunOption

	// ServerConfig holds the TCP server settings.
	ServerConfig = internal.ServerConfig

	// Transport is a server that Serve can run, such as *http.Server.
	Transport = internal.Transport

	// HealthOption configures health check endpoints.
	HealthOption = internal.HealthOption

	// HTTPError is an error that carries a status code.
	HTTPError = internal.HTTPError

	// HTTPErrorOption configures an HTTPError.
	HTTPErrorOption = internal.HTTPErrorOption

	// TransformError reports a handler argument that could not be resolved.
	TransformError = internal.TransformError

	// PanicError wraps a value recovered from a panicking handler.
	PanicError = internal.PanicError

	// Extractor tries several sources in order and returns the first value.
	Extractor = internal.Extractor

	// ExtractorSource reads one value from the request.
	ExtractorSource = internal.ExtractorSource

	// Scalar lists the types the typed param helpers convert to.
	Scalar = internal.Scalar

	// ContextExtractor extracts a slog attribute from context.
	// Used with WithLogger to add request-scoped values to logs.
	ContextExtractor = logger.ContextExtractor

	// ValidationErrors is a collection of validation errors.
	ValidationErrors = validator.ValidationErrors
)

// Configuration errors.
var (
	ErrMalformedPattern = internal.ErrMalformedPattern
	ErrDuplicateRoute   = internal.ErrDuplicateRoute
	ErrDuplicateHandler = internal.ErrDuplicateHandler
	ErrUnknownHandler   = internal.ErrUnknownHandler
	ErrStateAlreadySet  = internal.ErrStateAlreadySet
	ErrMissingState     = internal.ErrMissingState
	ErrAppFrozen        = internal.ErrAppFrozen
	ErrInvalidMethod    = internal.ErrInvalidMethod
	ErrNoEndpoint       = internal.ErrNoEndpoint
	ErrNilHandler       = internal.ErrNilHandler
)

// Request errors.
var (
	ErrHandlerSkipped = internal.ErrHandlerSkipped
	ErrNoTransformer  = internal.ErrNoTransformer
	ErrBodyTooLarge   = internal.ErrBodyTooLarge
)

// DefaultMaxBodySize bounds the buffered request body.
const DefaultMaxBodySize = internal.DefaultMaxBodySize

// Constructors

// New creates an application with the given options.
//
// Example:
//
//	app := conduit.New(
//	    conduit.WithMiddleware(middlewares.RequestID()),
//	    conduit.WithControllers(users),
//	    conduit.WithState(&deps),
//	)
//
//	err := app.Listen(":8080")
func New(opts ...Option) *App {
	return internal.New(opts...)
}

// NewFromModule creates an application from a module tree. Imported
// modules are mounted depth-first, each at most once.
func NewFromModule(root *Module, opts ...Option) *App {
	return internal.NewFromModule(root, opts...)
}

// NewController creates a controller named name.
//
// Example:
//
//	users := conduit.NewController("users",
//	    conduit.Prefix("/users"),
//	    conduit.Guard(gates.RequireHeader("Authorization")),
//	)
//	users.Get("show", "/<id>", showUser)
func NewController(name string, opts ...ControllerOption) *Controller {
	return internal.NewController(name, opts...)
}

// NewModule creates a module.
func NewModule(name string, opts ...ModuleOption) *Module {
	return internal.NewModule(name, opts...)
}

// NewContext builds a standalone Context over r. It is meant for tests
// and custom adapters.
func NewContext(r *http.Request, state any) (Context, error) {
	return internal.NewContext(r, state)
}

// NewResponse creates an empty 200 response.
func NewResponse() *Response {
	return internal.NewResponse()
}

// NewRouteTable creates an empty route table.
func NewRouteTable() *RouteTable {
	return internal.NewRouteTable()
}

// NewStore creates an empty store.
func NewStore() *Store {
	return internal.NewStore()
}

// CompilePattern parses a URI pattern.
func CompilePattern(raw string) (*Pattern, error) {
	return internal.CompilePattern(raw)
}

// MustCompilePattern is like CompilePattern but panics on error.
func MustCompilePattern(raw string) *Pattern {
	return internal.MustCompilePattern(raw)
}

// JoinPath joins a prefix and a path with exactly one slash between them.
func JoinPath(prefix, path string) string {
	return internal.JoinPath(prefix, path)
}

// App options

// WithMiddleware adds global middleware. It runs in insertion order.
func WithMiddleware(mw ...Middleware) Option {
	return internal.WithMiddleware(mw...)
}

// WithInterpreters adds response interpreters.
func WithInterpreters(in ...Interpreter) Option {
	return internal.WithInterpreters(in...)
}

// WithControllers mounts controllers.
func WithControllers(ctls ...*Controller) Option {
	return internal.WithControllers(ctls...)
}

// WithModule imports a module and its imports.
func WithModule(m *Module) Option {
	return internal.WithModule(m)
}

// WithState installs the application state shared by every request.
// It can be set once.
func WithState(state any) Option {
	return internal.WithState(state)
}

// WithTransformer registers a transformer for handler arguments of type T.
//
// Example:
//
//	conduit.WithTransformer(func(c conduit.Context) (User, error) {
//	    return auth.CurrentUser(c)
//	})
func WithTransformer[T any](fn func(c Context) (T, error)) Option {
	return internal.WithTransformer(fn)
}

// WithTransformerFor registers an untyped transformer for t.
func WithTransformerFor(t reflect.Type, fn Transformer) Option {
	return internal.WithTransformerFor(t, fn)
}

// WithValidator replaces the validator used by Bind, Dto, ParamsOf and QueryOf.
func WithValidator(v *validator.Validator) Option {
	return internal.WithValidator(v)
}

// WithCodecs replaces the body codec registry.
func WithCodecs(r *codec.Registry) Option {
	return internal.WithCodecs(r)
}

// WithErrorHandler sets a custom error handler for handler errors.
// Called when a handler returns a non-nil error.
func WithErrorHandler(h ErrorHandler) Option {
	return internal.WithErrorHandler(h)
}

// WithMaxBodySize bounds the buffered request body. Larger bodies are
// answered with 413.
func WithMaxBodySize(n int64) Option {
	return internal.WithMaxBodySize(n)
}

// WithLogger creates a logger with a component name and optional extractors.
// Extractors pull values from context (e.g., request_id, route).
//
// Example:
//
//	conduit.New(
//	    conduit.WithLogger("api",
//	        middlewares.RequestIDExtractor(),
//	        conduit.RouteExtractor(),
//	    ),
//	)
func WithLogger(component string, extractors ...ContextExtractor) Option {
	return internal.WithLogger(component, extractors...)
}

// WithCustomLogger sets a fully custom slog.Logger.
func WithCustomLogger(l *slog.Logger) Option {
	return internal.WithCustomLogger(l)
}

// WithMetricsEndpoint serves h at path on the router returned by App.Handler.
//
// Example:
//
//	conduit.WithMetricsEndpoint("/metrics", metrics.Handler())
func WithMetricsEndpoint(path string, h http.Handler) Option {
	return internal.WithMetricsEndpoint(path, h)
}

// WithHealthChecks enables health check endpoints with optional configuration.
// Liveness (/health/live): Always returns OK if process is running.
// Readiness (/health/ready): Runs all configured checks.
//
// Example:
//
//	conduit.WithHealthChecks(
//	    conduit.WithReadinessCheck("redis", broadcaster.Healthcheck),
//	)
func WithHealthChecks(opts ...HealthOption) Option {
	return internal.WithHealthChecks(opts...)
}

// Health options

// WithLivenessPath sets the liveness endpoint path.
func WithLivenessPath(path string) HealthOption {
	return internal.WithLivenessPath(path)
}

// WithReadinessPath sets the readiness endpoint path.
func WithReadinessPath(path string) HealthOption {
	return internal.WithReadinessPath(path)
}

// WithReadinessCheck adds a named readiness check.
func WithReadinessCheck(name string, fn health.CheckFunc) HealthOption {
	return internal.WithReadinessCheck(name, fn)
}

// Controller options

// Prefix sets the path prefix of every controller route.
func Prefix(p string) ControllerOption {
	return internal.Prefix(p)
}

// Use adds controller middleware. It runs after global middleware.
func Use(mw ...Middleware) ControllerOption {
	return internal.Use(mw...)
}

// Guard adds gates checked before every handler of the controller.
func Guard(gates ...Gate) ControllerOption {
	return internal.Guard(gates...)
}

// Inject resolves a named field with fn before each handler runs.
func Inject(name string, fn Transformer) ControllerOption {
	return internal.Inject(name, fn)
}

// InjectType resolves a named field of type T before each handler runs.
// Read it back with Injected.
func InjectType[T any](name string) ControllerOption {
	return internal.InjectType[T](name)
}

// RequireState makes Build fail unless the application state is a T.
func RequireState[T any]() ControllerOption {
	return internal.RequireState[T]()
}

// Handler options

// On declares the method and paths of a handler.
func On(method string, paths ...string) HandlerOption {
	return internal.On(method, paths...)
}

// Check adds gates for a single handler.
func Check(gates ...Gate) HandlerOption {
	return internal.Check(gates...)
}

// HTTPCode overrides the default status of a handler.
func HTTPCode(code int) HandlerOption {
	return internal.HTTPCode(code)
}

// Module options

// Imports adds imported modules.
func Imports(mods ...*Module) ModuleOption {
	return internal.Imports(mods...)
}

// Controllers adds controllers to a module.
func Controllers(ctls ...*Controller) ModuleOption {
	return internal.Controllers(ctls...)
}

// Run options

// Address sets the HTTP server address.
// Defaults to ":8080".
func Address(addr string) RunOption {
	return internal.Address(addr)
}

// Logger sets the runtime logger.
func Logger(l *slog.Logger) RunOption {
	return internal.Logger(l)
}

// ShutdownTimeout sets the timeout for graceful shutdown.
// Defaults to 30 seconds.
func ShutdownTimeout(d time.Duration) RunOption {
	return internal.ShutdownTimeout(d)
}

// ShutdownHook registers a cleanup function to run during shutdown.
// Hooks run in registration order.
func ShutdownHook(fn func(context.Context) error) RunOption {
	return internal.ShutdownHook(fn)
}

// WithServerConfig replaces the server settings. Zero fields keep their defaults.
//
// Example:
//
//	cfg := config.MustLoad[conduit.ServerConfig]()
//	err := app.Listen(cfg.Addr, conduit.WithServerConfig(cfg))
func WithServerConfig(sc ServerConfig) RunOption {
	return internal.WithServerConfig(sc)
}

// WithContext sets a custom base context for signal handling.
func WithContext(ctx context.Context) RunOption {
	return internal.WithContext(ctx)
}

// DefaultServerConfig returns the settings used when none are given.
func DefaultServerConfig() ServerConfig {
	return internal.DefaultServerConfig()
}

// Handler adapters

// Bind0 adapts a handler without arguments.
func Bind0[R any](fn func() (R, error)) HandlerFunc {
	return internal.Bind0(fn)
}

// Bind1 adapts a handler with one resolved argument.
//
// Example:
//
//	users.Post("create", "/", conduit.Bind1(func(in conduit.Dto[CreateUser]) (User, error) {
//	    return repo.Create(in.Value)
//	}))
func Bind1[A, R any](fn func(A) (R, error)) HandlerFunc {
	return internal.Bind1(fn)
}

// Bind2 adapts a handler with two resolved arguments.
func Bind2[A, B, R any](fn func(A, B) (R, error)) HandlerFunc {
	return internal.Bind2(fn)
}

// Bind3 adapts a handler with three resolved arguments.
func Bind3[A, B, C, R any](fn func(A, B, C) (R, error)) HandlerFunc {
	return internal.Bind3(fn)
}

// Bind4 adapts a handler with four resolved arguments.
func Bind4[A, B, C, D, R any](fn func(A, B, C, D) (R, error)) HandlerFunc {
	return internal.Bind4(fn)
}

// JSON wraps v so it is always written as JSON.
func JSON(v any) ResponseWriterTo {
	return internal.JSON(v)
}

// WithStatus wraps v with an explicit status.
func WithStatus(code int, v any) ResponseWriterTo {
	return internal.WithStatus(code, v)
}

// DefaultErrorHandler writes err into the response. It is used when no
// custom handler is installed.
func DefaultErrorHandler(c Context, err error) {
	internal.DefaultErrorHandler(c, err)
}

// Transformers and typed accessors

// NewTransformerRegistry creates a registry with the built-in transformers.
func NewTransformerRegistry() *TransformerRegistry {
	return internal.NewRegistry()
}

// RegisterTransformer registers fn for arguments of type T on r.
func RegisterTransformer[T any](r *TransformerRegistry, fn func(c Context) (T, error)) {
	internal.RegisterTransformer(r, fn)
}

// Resolve produces a T for the current request.
func Resolve[T any](c Context) (T, error) {
	return internal.Resolve[T](c)
}

// State returns the application state as a T.
func State[T any](c Context) (T, bool) {
	return internal.State[T](c)
}

// Injected returns the named injected field as a T.
func Injected[T any](c Context, name string) (T, bool) {
	return internal.Injected[T](c, name)
}

// StoreValue reads a typed value from s.
func StoreValue[V any](s *Store, key string) (V, bool) {
	return internal.StoreValue[V](s, key)
}

// ParamAs returns the named path capture converted to T.
func ParamAs[T Scalar](c Context, name string) T {
	return internal.ParamAs[T](c, name)
}

// QueryAs returns the named query value converted to T.
func QueryAs[T Scalar](c Context, name string) T {
	return internal.QueryAs[T](c, name)
}

// QueryDefault returns the named query value converted to T, or defaultValue.
func QueryDefault[T Scalar](c Context, name string, defaultValue T) T {
	return internal.QueryDefault(c, name, defaultValue)
}

// ContextValue retrieves a typed value from the request context.
// Returns the zero value of T if the key is not found or the type doesn't match.
//
// Example:
//
//	id := conduit.ContextValue[string](c, requestIDKey{})
func ContextValue[T any](c Context, key any) T {
	return internal.ContextValue[T](c, key)
}

// RouteExtractor returns a log extractor that adds the matched route.
func RouteExtractor() ContextExtractor {
	return internal.RouteExtractor()
}

// Extractors

// NewExtractor creates an Extractor that tries the given sources in order.
func NewExtractor(sources ...ExtractorSource) Extractor {
	return internal.NewExtractor(sources...)
}

// FromHeader reads a request header.
func FromHeader(name string) ExtractorSource {
	return internal.FromHeader(name)
}

// FromQuery reads a query parameter.
func FromQuery(name string) ExtractorSource {
	return internal.FromQuery(name)
}

// FromParam reads a path capture.
func FromParam(name string) ExtractorSource {
	return internal.FromParam(name)
}

// FromStore reads a string from the request store.
func FromStore(key string) ExtractorSource {
	return internal.FromStore(key)
}

// FromBearerToken reads a Bearer token from the Authorization header.
func FromBearerToken() ExtractorSource {
	return internal.FromBearerToken()
}

// FromRemoteIP yields the client IP.
func FromRemoteIP() ExtractorSource {
	return internal.FromRemoteIP()
}

// ClientIP returns the client address of r without the port.
func ClientIP(r *http.Request) string {
	return internal.ClientIP(r)
}

// Errors

// NewHTTPError creates an HTTPError.
func NewHTTPError(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.NewHTTPError(code, message, opts...)
}

// Error options for HTTPError.
var (
	WithTitle       = internal.WithTitle
	WithDetail      = internal.WithDetail
	WithErrorCode   = internal.WithErrorCode
	WithRequestID   = internal.WithRequestID
	WithError       = internal.WithError
	IsHTTPError     = internal.IsHTTPError
	AsHTTPError     = internal.AsHTTPError
	ErrBadRequest   = internal.ErrBadRequest
	ErrUnauthorized = internal.ErrUnauthorized
	ErrForbidden    = internal.ErrForbidden
	ErrNotFound     = internal.ErrNotFound
	ErrConflict     = internal.ErrConflict
)

// More HTTPError constructors.
var (
	ErrUnprocessable      = internal.ErrUnprocessable
	ErrTooManyRequests    = internal.ErrTooManyRequests
	ErrInternal           = internal.ErrInternal
	ErrServiceUnavailable = internal.ErrServiceUnavailable
)
