package logger

import (
	"context"
	"io"
	"log/slog"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig holds Sentry integration configuration.
type SentryConfig struct {
	Config
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	Release     string `env:"SENTRY_RELEASE"`
	// MinLevel selects what is stored in Sentry: Warn stores warnings and
	// errors, Error stores errors only. Errors always create issues.
	MinLevel slog.Level `env:"SENTRY_MIN_LEVEL" envDefault:"WARN"`
}

// NewWithSentry creates a logger writing to w and, when DSN is set, to Sentry.
func NewWithSentry(cfg SentryConfig, w io.Writer, extractors ...ContextExtractor) *slog.Logger {
	base := newBaseHandler(cfg.Config, w)
	if cfg.DSN == "" {
		return slog.New(NewContextHandler(base, extractors...))
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		EnableLogs:  true,
	})
	if err != nil {
		slog.New(base).Error("sentry init failed, logging to stdout only", slog.Any("error", err))
		return slog.New(NewContextHandler(base, extractors...))
	}

	logLevels := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.MinLevel >= slog.LevelError {
		logLevels = []slog.Level{slog.LevelError}
	}
	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevels,
	}.NewSentryHandler(context.Background())

	return slog.New(NewContextHandler(fanout{base, sentryHandler}, extractors...))
}
