package broadcast

import (
	"context"
	"sync"
)

// Memory is an in-process Broadcaster. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	channels map[string]map[*subscriber]struct{}
	opts     options
	closed   bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewMemory creates an in-memory broadcaster.
func NewMemory(opts ...Option) *Memory {
	return &Memory{
		channels: make(map[string]map[*subscriber]struct{}),
		opts:     buildOptions(opts),
		done:     make(chan struct{}),
	}
}

// Publish delivers data to every current subscriber of channel. Slow
// subscribers miss the message.
func (b *Memory) Publish(_ context.Context, channel string, data []byte) error {
	if channel == "" {
		return ErrEmptyChannel
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	msg := Message{Channel: channel, Data: data}
	for sub := range b.channels[channel] {
		sub.send(msg)
	}
	return nil
}

// Subscribe registers a subscriber on channel.
func (b *Memory) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if channel == "" {
		return nil, ErrEmptyChannel
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	var sub *subscriber
	sub = newSubscriber(b.opts.bufferSize, func() { b.remove(channel, sub) })
	if b.channels[channel] == nil {
		b.channels[channel] = make(map[*subscriber]struct{})
	}
	b.channels[channel][sub] = struct{}{}

	closeOnDone(ctx, sub, &b.wg, b.done)
	return sub, nil
}

// Subscribers returns the number of subscribers on channel.
func (b *Memory) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[channel])
}

// Close closes every subscription. It is safe to call more than once.
func (b *Memory) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)

	var subs []*subscriber
	for _, set := range b.channels {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	b.wg.Wait()
	return nil
}

func (b *Memory) remove(channel string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set := b.channels[channel]
	delete(set, sub)
	if len(set) == 0 {
		delete(b.channels, channel)
	}
}
