package gates

import (
	"math"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitrymomot/conduit/internal"
)

// Defaults for idle limiter eviction.
const (
	DefaultLimiterTTL = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a Gate that applies a token bucket per client key. Rejected
// requests get 429 with a Retry-After header.
type Limiter struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	key       internal.Extractor
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// RateLimitOption configures a Limiter.
type RateLimitOption func(*Limiter)

// WithKey sets how the client key is derived. Defaults to the client IP.
// Requests without a key share one bucket.
func WithKey(ext internal.Extractor) RateLimitOption {
	return func(l *Limiter) {
		l.key = ext
	}
}

// WithLimiterTTL sets how long an idle client bucket is kept.
func WithLimiterTTL(ttl time.Duration) RateLimitOption {
	return func(l *Limiter) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) RateLimitOption {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// RateLimit creates a rate limiting gate that allows rps requests per
// second per client with bursts of up to burst requests.
func RateLimit(rps float64, burst int, opts ...RateLimitOption) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(rps),
		burst:   burst,
		key:     internal.NewExtractor(internal.FromRemoteIP()),
		ttl:     DefaultLimiterTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Check consumes a token for the request's client. It answers 429 and
// returns false when the bucket is empty.
func (l *Limiter) Check(c internal.Context) bool {
	key, _ := l.key.Extract(c)
	now := l.now()

	r := l.get(key, now).ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if r.OK() && delay == 0 {
		return true
	}
	r.CancelAt(now)

	if r.OK() {
		c.SetHeader("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
	}
	c.LogDebug("rate limit exceeded", "key", key)
	c.Respond(nil, internal.ErrTooManyRequests("rate limit exceeded"))
	return false
}

// Len returns the number of tracked client buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.ttl {
		cutoff := now.Add(-l.ttl)
		for k, e := range l.entries {
			if e.lastSeen.Before(cutoff) {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	if e, ok := l.entries[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	e := &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	l.entries[key] = e
	return e.limiter
}
