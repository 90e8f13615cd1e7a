package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

var (
	ErrNotConfigured = errors.New("mongo: MONGODB_URL is not set")
	ErrNoDatabase    = errors.New("mongo: MONGODB_DATABASE is empty")
	ErrUnavailable   = errors.New("mongo: server is unavailable")
	ErrUnhealthy     = errors.New("mongo: primary ping failed")
)

// Connect creates a MongoDB client and pings the primary, retrying on failure.
//
// Parameters:
//   - ctx: Context for cancellation; a cancelled context stops retrying
//   - cfg: Connection URL, pool sizing and retry settings
//
// Returns:
//   - *mongo.Client: A client whose primary answered a ping
//   - error: ErrNotConfigured when no URL is set, ErrUnavailable if the
//     client cannot be built or every ping failed
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrNotConfigured
	}
	opts := options.Client().
		ApplyURI(cfg.ConnectionURL).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetRetryWrites(cfg.RetryWrites).
		SetRetryReads(cfg.RetryReads)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}

	var lastErr error
	for range max(cfg.RetryAttempts, 1) {
		if lastErr = client.Ping(ctx, readpref.Primary()); lastErr == nil {
			return client, nil
		}
		select {
		case <-ctx.Done():
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, errors.Join(ErrUnavailable, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	_ = client.Disconnect(ctx)
	return nil, errors.Join(ErrUnavailable, lastErr)
}

// ConnectDatabase connects and returns the configured database.
func ConnectDatabase(ctx context.Context, cfg Config) (*mongo.Database, error) {
	if cfg.Database == "" {
		return nil, ErrNoDatabase
	}
	client, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client.Database(cfg.Database), nil
}

// Healthcheck returns a readiness check that pings the primary.
func Healthcheck(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			return errors.Join(ErrUnhealthy, err)
		}
		return nil
	}
}

// IsDuplicateKeyError reports a unique index violation.
func IsDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// IsNotFoundError reports whether err is mongo.ErrNoDocuments.
func IsNotFoundError(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
