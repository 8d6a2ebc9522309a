// Command example runs a small notes service on one of the Conduit
// transports. TRANSPORT selects http (default), fasthttp or ws.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrymomot/conduit"
	"github.com/dmitrymomot/conduit/gates"
	"github.com/dmitrymomot/conduit/middlewares"
	"github.com/dmitrymomot/conduit/pkg/broadcast"
	"github.com/dmitrymomot/conduit/pkg/config"
	"github.com/dmitrymomot/conduit/pkg/logger"
	"github.com/dmitrymomot/conduit/pkg/metrics"
	"github.com/dmitrymomot/conduit/pkg/redis"
	"github.com/dmitrymomot/conduit/platform/fastserver"
	"github.com/dmitrymomot/conduit/platform/ws"
)

type appConfig struct {
	Transport  string  `env:"TRANSPORT" envDefault:"http"`
	RateLimit  float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateBurst  int     `env:"RATE_LIMIT_BURST" envDefault:"40"`
	CORSOrigin string  `env:"CORS_ORIGIN" envDefault:"*"`
	UseRedis   bool    `env:"USE_REDIS" envDefault:"false"`

	Server conduit.ServerConfig
	Log    logger.SentryConfig
	Redis  redis.Config
}

func main() {
	cfg := config.MustLoad[appConfig]()
	log := logger.NewWithSentry(cfg.Log, os.Stdout,
		middlewares.RequestIDExtractor(),
		conduit.RouteExtractor(),
	)

	if err := run(cfg, log); err != nil {
		log.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg appConfig, log *slog.Logger) error {
	ctx := context.Background()

	var (
		hub    broadcast.Broadcaster = broadcast.NewMemory()
		checks []conduit.HealthOption
		hooks  []conduit.RunOption
	)
	if cfg.UseRedis {
		client, err := redis.Open(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		rb := broadcast.NewRedis(client, broadcast.WithPrefix("notes:"))
		hub = rb
		checks = append(checks, conduit.WithReadinessCheck("redis", rb.Healthcheck()))
		hooks = append(hooks, conduit.ShutdownHook(redis.Shutdown(client)))
	}
	hooks = append(hooks, conduit.ShutdownHook(func(context.Context) error { return hub.Close() }))

	collector := metrics.New(metrics.WithNamespace("notes"), metrics.WithRuntimeMetrics())
	access := middlewares.AccessLog(log)
	events := &publisher{hub: hub}

	limiter := gates.RateLimit(cfg.RateLimit, cfg.RateBurst)
	app := conduit.NewFromModule(notesModule(events, limiter),
		conduit.WithCustomLogger(log),
		conduit.WithState(&notes{}),
		conduit.WithMiddleware(
			middlewares.RequestID(),
			middlewares.Tracing(),
			middlewares.CORS(middlewares.CORSOrigins(cfg.CORSOrigin)),
			middlewares.Timeout(5*time.Second),
			access,
			collector,
		),
		conduit.WithInterpreters(access, collector),
		conduit.WithHealthChecks(checks...),
		conduit.WithMetricsEndpoint("/metrics", collector.Handler()),
		conduit.WithErrorHandler(handleError),
	)
	app.Route("*", http.MethodOptions, middlewares.Preflight)

	opts := append([]conduit.RunOption{conduit.WithServerConfig(cfg.Server)}, hooks...)
	switch cfg.Transport {
	case "fasthttp":
		return fastserver.New(app, fastserver.Mount("/metrics", collector.Handler())).Listen(cfg.Server.Addr, opts...)
	case "ws":
		srv := ws.New(app, ws.WithBroadcaster(hub, "notes"))
		events.ws = srv
		return srv.Listen(cfg.Server.Addr, opts...)
	default:
		return app.Listen(cfg.Server.Addr, opts...)
	}
}

func handleError(c conduit.Context, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		c.LogWarn("request timed out")
	}
	conduit.DefaultErrorHandler(c, err)
}

type note struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

type notes struct {
	mu    sync.RWMutex
	items []note
}

func (n *notes) add(text string) note {
	n.mu.Lock()
	defer n.mu.Unlock()
	item := note{ID: len(n.items) + 1, Text: text}
	n.items = append(n.items, item)
	return item
}

func (n *notes) find(id int) (note, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if id < 1 || id > len(n.items) {
		return note{}, false
	}
	return n.items[id-1], true
}

func (n *notes) all() []note {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]note(nil), n.items...)
}

// publisher announces new notes to WebSocket clients.
type publisher struct {
	hub broadcast.Broadcaster
	ws  *ws.Server
}

func (p *publisher) announce(ctx context.Context, n note) {
	msg := []byte("note:" + strconv.Itoa(n.ID))
	if p.ws != nil {
		_ = p.ws.Broadcast(ctx, msg)
		return
	}
	_ = p.hub.Publish(ctx, "notes", msg)
}

type createNote struct {
	Text string `json:"text" validate:"required,max=500"`
}

func notesModule(events *publisher, limiter conduit.Gate) *conduit.Module {
	ctl := conduit.NewController("notes",
		conduit.Prefix("/notes"),
		conduit.RequireState[*notes](),
		conduit.Guard(limiter),
	)

	ctl.Get("list", "/", conduit.Bind1(func(store *notes) ([]note, error) {
		return store.all(), nil
	}))

	ctl.Get("show", "/<id>", func(c conduit.Context) (any, error) {
		store, _ := conduit.State[*notes](c)
		n, ok := store.find(conduit.ParamAs[int](c, "id"))
		if !ok {
			return nil, conduit.ErrNotFound("note not found")
		}
		return n, nil
	}, conduit.HTTPCode(http.StatusOK))

	ctl.Post("create", "/", conduit.Bind2(func(in conduit.Dto[createNote], store *notes) (conduit.ResponseWriterTo, error) {
		n := store.add(in.Value.Text)
		events.announce(context.Background(), n)
		return conduit.WithStatus(http.StatusCreated, n), nil
	}), conduit.Check(gates.RequireHeader("Authorization")))

	return conduit.NewModule("notes", conduit.Controllers(ctl))
}
