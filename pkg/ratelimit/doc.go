// Package ratelimit throttles requests per key with golang.org/x/time/rate.
//
// Each key (by default the client IP) gets its own token bucket. Idle buckets
// expire from an in-process cache, so memory stays bounded by the number of
// recently active clients.
//
//	limiter := ratelimit.New(cfg)
//	r.With(ratelimit.Middleware(limiter, ratelimit.ByIP)).Post("/api/auth/login", login)
//
// Rejected requests receive 429 with a Retry-After header and the standard JSON
// error envelope.
package ratelimit
