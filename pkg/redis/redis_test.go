package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/conduit/pkg/config"
	"github.com/dmitrymomot/conduit/pkg/redis"
)

func TestConfig_Options(t *testing.T) {
	t.Parallel()

	t.Run("empty URL", func(t *testing.T) {
		t.Parallel()
		_, err := redis.Config{}.Options()
		require.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
	})

	t.Run("invalid scheme", func(t *testing.T) {
		t.Parallel()
		for _, url := range []string{"http://localhost:6379", "localhost:6379", "postgresql://localhost:6379"} {
			_, err := redis.Config{URL: url}.Options()
			require.ErrorIs(t, err, redis.ErrFailedToParseURL, url)
		}
	})

	t.Run("settings override parsed URL", func(t *testing.T) {
		t.Parallel()
		opts, err := redis.Config{
			URL:          "redis://:secret@cache:6380/2",
			PoolSize:     20,
			MinIdleConns: 4,
			ReadTimeout:  time.Second,
		}.Options()
		require.NoError(t, err)
		assert.Equal(t, "cache:6380", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 20, opts.PoolSize)
		assert.Equal(t, 4, opts.MinIdleConns)
		assert.Equal(t, time.Second, opts.ReadTimeout)
	})
}

func TestConfig_FromEnvironment(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse[redis.Config](config.WithEnvironment(map[string]string{
		"REDIS_URL":       "rediss://redis.internal:6379/1",
		"REDIS_POOL_SIZE": "32",
	}))
	require.NoError(t, err)
	assert.Equal(t, "rediss://redis.internal:6379/1", cfg.URL)
	assert.Equal(t, 32, cfg.PoolSize)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
}

func TestOpen_Unreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := redis.Open(ctx, redis.Config{
		URL:           "redis://127.0.0.1:1/0",
		DialTimeout:   200 * time.Millisecond,
		RetryAttempts: 2,
		RetryInterval: 10 * time.Millisecond,
	})
	require.ErrorIs(t, err, redis.ErrConnectionFailed)
	assert.Nil(t, client)
}

func TestOpen_CancelledDuringRetry(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := redis.Open(ctx, redis.Config{
		URL:           "redis://127.0.0.1:1/0",
		DialTimeout:   50 * time.Millisecond,
		RetryAttempts: 5,
		RetryInterval: time.Minute,
	})
	require.ErrorIs(t, err, redis.ErrConnectionFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHealthcheck_NilClient(t *testing.T) {
	t.Parallel()

	err := redis.Healthcheck(nil)(context.Background())
	require.ErrorIs(t, err, redis.ErrHealthcheckFailed)
}

type closer struct {
	closed bool
	err    error
}

func (c *closer) Close() error {
	c.closed = true
	return c.err
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	c := &closer{}
	require.NoError(t, redis.Shutdown(c)(context.Background()))
	assert.True(t, c.closed)

	failing := &closer{err: errors.New("close failed")}
	assert.EqualError(t, redis.Shutdown(failing)(context.Background()), "close failed")
}
