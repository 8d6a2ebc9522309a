// Package broadcast fans messages out to subscribers of a named channel.
//
// Two backends are provided. Memory delivers within one process. Redis uses
// pub/sub so every instance of a service receives what any instance
// publishes. Both drop messages for subscribers whose buffer is full rather
// than blocking the publisher.
//
//	b := broadcast.NewMemory(broadcast.WithBufferSize(64))
//	defer b.Close()
//
//	sub, err := b.Subscribe(ctx, "chat")
//	if err != nil {
//	    return err
//	}
//	defer sub.Close()
//
//	_ = b.Publish(ctx, "chat", []byte("hello"))
//	msg := <-sub.C()
package broadcast

import (
	"context"
	"errors"
	"sync"
)

// DefaultBufferSize is the per-subscriber buffer.
const DefaultBufferSize = 16

var (
	ErrClosed       = errors.New("broadcast: broadcaster is closed")
	ErrEmptyChannel = errors.New("broadcast: empty channel name")
)

// Message is a payload published on a channel.
type Message struct {
	Channel string
	Data    []byte
}

// Subscription receives the messages of one channel.
type Subscription interface {
	// C returns the delivery channel. It is closed by Close.
	C() <-chan Message
	// Close stops delivery. It is idempotent.
	Close() error
}

// Broadcaster publishes messages to channel subscribers.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, data []byte) error
	// Subscribe registers a subscriber. The subscription ends when ctx is
	// cancelled or Close is called.
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Close() error
}

// Option configures a broadcaster.
type Option func(*options)

type options struct {
	bufferSize int
}

// WithBufferSize sets the per-subscriber buffer. Values below 1 are raised to 1.
func WithBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = max(n, 1)
	}
}

func buildOptions(opts []Option) options {
	o := options{bufferSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// subscriber is the buffered delivery end shared by both backends.
type subscriber struct {
	ch      chan Message
	done    chan struct{}
	onClose func()
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
}

func newSubscriber(size int, onClose func()) *subscriber {
	return &subscriber{
		ch:      make(chan Message, size),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

func (s *subscriber) C() <-chan Message {
	return s.ch
}

func (s *subscriber) Close() error {
	s.once.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}

// send delivers msg without blocking. It reports false when the message
// was dropped.
func (s *subscriber) send(msg Message) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// closeOnDone closes sub when ctx ends. The watcher exits early when sub
// is closed directly or the broadcaster stops.
func closeOnDone(ctx context.Context, sub *subscriber, wg *sync.WaitGroup, stop <-chan struct{}) {
	if ctx.Done() == nil {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		case <-stop:
		}
	}()
}
