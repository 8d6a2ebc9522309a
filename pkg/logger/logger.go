package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config controls the stdout handler.
type Config struct {
	Level  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	Format string     `env:"LOG_FORMAT" envDefault:"json"`
}

// New creates a JSON logger on stdout at Info level.
func New(extractors ...ContextExtractor) *slog.Logger {
	return NewWithConfig(Config{Level: slog.LevelInfo, Format: FormatJSON}, os.Stdout, extractors...)
}

// NewWithConfig creates a logger writing to w with the configured level and format.
func NewWithConfig(cfg Config, w io.Writer, extractors ...ContextExtractor) *slog.Logger {
	return slog.New(NewContextHandler(newBaseHandler(cfg, w), extractors...))
}

// NewNope creates a logger that discards everything.
func NewNope() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newBaseHandler(cfg Config, w io.Writer) slog.Handler {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if strings.EqualFold(cfg.Format, FormatText) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
