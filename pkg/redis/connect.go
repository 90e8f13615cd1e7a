package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNotConfigured = errors.New("redis: REDIS_URL is not set")
	ErrInvalidURL    = errors.New("redis: invalid connection URL")
	ErrNotReady      = errors.New("redis: server did not answer in time")
	ErrUnhealthy     = errors.New("redis: ping failed")
)

// Connect establishes a connection to a Redis server using the provided configuration.
// It pings up to RetryAttempts times, waiting RetryInterval between attempts,
// and gives up as soon as ConnectTimeout elapses.
//
// Parameters:
//   - ctx: Context for controlling the connection timeout and cancellation
//   - cfg: Connection URL, timeout and retry settings
//
// Returns:
//   - *redis.Client: A connected client if a ping succeeded
//   - error: ErrNotConfigured when no URL is set, ErrInvalidURL if the URL
//     cannot be parsed, ErrNotReady if every attempt failed
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrInvalidURL, err)
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	client := redis.NewClient(opts)
	var lastErr error
	for range max(cfg.RetryAttempts, 1) {
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, errors.Join(ErrNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	_ = client.Close()
	return nil, errors.Join(ErrNotReady, lastErr)
}

// Healthcheck returns a readiness check for client.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrUnhealthy, err)
		}
		return nil
	}
}
