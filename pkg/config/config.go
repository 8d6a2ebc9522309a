// Package config loads typed configuration from environment variables.
//
// Structs declare their variables with caarlos0/env tags. Before parsing, .env
// files are loaded once per process with godotenv; variables that are already
// set win over file values.
//
//	type AppConfig struct {
//	    Server conduit.ServerConfig
//	    Log    logger.Config
//	}
//
//	cfg := config.MustLoad[AppConfig]()
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig = errors.New("config: failed to parse environment")
	ErrLoadingEnv    = errors.New("config: failed to load env file")
)

type options struct {
	files       []string
	prefix      string
	environment map[string]string
}

// Option configures loading.
type Option func(*options)

// WithEnvFiles loads the given files instead of ".env". Missing files are ignored.
func WithEnvFiles(files ...string) Option {
	return func(o *options) {
		o.files = files
	}
}

// WithPrefix prepends prefix to every variable name.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithEnvironment parses from the given map instead of the process environment.
// Env files are not loaded in this mode.
func WithEnvironment(m map[string]string) Option {
	return func(o *options) {
		o.environment = m
	}
}

var (
	loadedFiles sync.Map // file name -> struct{}
	cache       sync.Map // reflect.Type -> any
	cacheMu     sync.Mutex
)

// Parse reads configuration into a new T on every call.
func Parse[T any](opts ...Option) (T, error) {
	o := &options{files: []string{".env"}}
	for _, opt := range opts {
		opt(o)
	}

	var cfg T
	if o.environment == nil {
		if err := loadFiles(o.files); err != nil {
			return cfg, err
		}
	}

	envOpts := env.Options{Prefix: o.prefix}
	if o.environment != nil {
		envOpts.Environment = o.environment
	}
	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// Load parses T once and returns the cached value on later calls.
// Options only take effect on the first successful load of a type.
func Load[T any](opts ...Option) (T, error) {
	key := reflect.TypeFor[T]()
	if v, ok := cache.Load(key); ok {
		return v.(T), nil
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if v, ok := cache.Load(key); ok {
		return v.(T), nil
	}

	cfg, err := Parse[T](opts...)
	if err != nil {
		return cfg, err
	}
	cache.Store(key, cfg)
	return cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad[T any](opts ...Option) T {
	cfg, err := Load[T](opts...)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

func loadFiles(files []string) error {
	for _, f := range files {
		if _, done := loadedFiles.Load(f); done {
			continue
		}
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Join(ErrLoadingEnv, err)
		}
		loadedFiles.Store(f, struct{}{})
	}
	return nil
}
