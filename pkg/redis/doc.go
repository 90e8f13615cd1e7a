// Package redis connects to Redis with go-redis/v9. The client backs the
// webhook idempotency claims and the sweeper lock.
package redis
