package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/labgrid/handler"
)

// Middleware rejects requests whose bucket is empty with 429.
func Middleware(l *Limiter, keyFunc KeyFunc) func(http.Handler) http.Handler {
	if l == nil || keyFunc == nil {
		panic("ratelimit.Middleware: limiter and keyFunc are required")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := l.Allow(key)
			if !ok {
				secs := int(math.Ceil(wait.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				_ = handler.JSONError(ErrTooManyRequests).Render(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
