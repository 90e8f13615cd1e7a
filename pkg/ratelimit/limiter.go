package ratelimit

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per key.
type Limiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	buckets *cache.Cache
	mu      sync.Mutex
	now     func() time.Time
}

// Option configures Limiter.
type Option func(*Limiter)

// WithNow overrides the clock. Used by tests.
func WithNow(fn func() time.Time) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New creates a limiter. Non-positive values fall back to 5 rps, burst 20 and
// a 10 minute idle TTL.
func New(cfg Config, opts ...Option) *Limiter {
	if cfg.RPS <= 0 {
		cfg.RPS = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	l := &Limiter{
		limit:   rate.Limit(cfg.RPS),
		burst:   cfg.Burst,
		idleTTL: cfg.IdleTTL,
		buckets: cache.New(cfg.IdleTTL, cfg.IdleTTL),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes one token for key. When the bucket is empty it returns false
// and the time until the next token.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()
	res := l.bucket(key).ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.buckets.Get(key); ok {
		b := v.(*rate.Limiter)
		l.buckets.Set(key, b, l.idleTTL)
		return b
	}
	b := rate.NewLimiter(l.limit, l.burst)
	l.buckets.Set(key, b, l.idleTTL)
	return b
}
