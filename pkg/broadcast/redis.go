package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/conduit/pkg/health"
	redispkg "github.com/dmitrymomot/conduit/pkg/redis"
)

// Redis is a Broadcaster backed by Redis pub/sub. Channel names are
// prefixed so several applications can share one server.
type Redis struct {
	client redis.UniversalClient
	prefix string
	opts   options

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// RedisOption configures a Redis broadcaster.
type RedisOption func(*Redis)

// WithPrefix sets the channel name prefix. The default is "broadcast:".
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithRedisOptions applies the shared broadcaster options.
func WithRedisOptions(opts ...Option) RedisOption {
	return func(r *Redis) {
		r.opts = buildOptions(opts)
	}
}

// NewRedis creates a Redis broadcaster. The client is not closed by Close.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: "broadcast:",
		opts:   buildOptions(nil),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Publish sends data to every subscriber of channel on any instance.
func (r *Redis) Publish(ctx context.Context, channel string, data []byte) error {
	if channel == "" {
		return ErrEmptyChannel
	}
	if r.isClosed() {
		return ErrClosed
	}
	if err := r.client.Publish(ctx, r.prefix+channel, data).Err(); err != nil {
		return fmt.Errorf("broadcast: publish %q: %w", channel, err)
	}
	return nil
}

// Subscribe opens a Redis subscription on channel. It returns once the
// server has confirmed the subscription.
func (r *Redis) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if channel == "" {
		return nil, ErrEmptyChannel
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	ps := r.client.Subscribe(ctx, r.prefix+channel)
	if _, err := ps.Receive(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("broadcast: subscribe %q: %w", channel, err), ps.Close())
	}

	sub := newSubscriber(r.opts.bufferSize, func() { _ = ps.Close() })

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		in := ps.Channel()
		for {
			select {
			case m, ok := <-in:
				if !ok {
					return
				}
				sub.send(Message{Channel: channel, Data: []byte(m.Payload)})
			case <-sub.done:
				return
			case <-ctx.Done():
				_ = sub.Close()
				return
			case <-r.done:
				_ = sub.Close()
				return
			}
		}
	}()

	return sub, nil
}

// Close ends every subscription and waits for the receive loops to exit.
func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

// Healthcheck reports whether the Redis server is reachable.
func (r *Redis) Healthcheck() health.CheckFunc {
	return redispkg.Healthcheck(r.client)
}

func (r *Redis) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
