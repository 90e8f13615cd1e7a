package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/labgrid/pkg/ratelimit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_Allow(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := ratelimit.New(ratelimit.Config{RPS: 1, Burst: 2}, ratelimit.WithNow(clock.Now))

	ok, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("a")
	assert.True(t, ok)

	ok, wait := l.Allow("a")
	assert.False(t, ok)
	assert.InDelta(t, time.Second, wait, float64(10*time.Millisecond))

	ok, _ = l.Allow("b")
	assert.True(t, ok, "keys have separate buckets")

	clock.Advance(time.Second)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := ratelimit.New(ratelimit.Config{RPS: 1, Burst: 1}, ratelimit.WithNow(clock.Now))
	h := ratelimit.Middleware(l, ratelimit.ByIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1").Code)

	rec := send("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limited")

	assert.Equal(t, http.StatusNoContent, send("10.0.0.2").Code)
}

func TestComposite(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/webhooks/stripe", nil)
	req.RemoteAddr = "192.0.2.7:1234"

	assert.Equal(t, "192.0.2.7:/webhooks/stripe", ratelimit.Composite(ratelimit.ByIP, ratelimit.ByPath)(req))

	long := func(*http.Request) string { return strings.Repeat("x", 80) }
	key := ratelimit.Composite(long, ratelimit.ByIP)(req)
	assert.Len(t, key, 32)

	empty := func(*http.Request) string { return "" }
	assert.Empty(t, ratelimit.Composite(empty)(req))
}
