package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/labgrid/pkg/logger"
)

type ctxKey struct{}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json by default", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		log.Info("hello", logger.UserID("u1"), logger.Error(errors.New("boom")))

		entry := decode(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
		assert.Equal(t, "u1", entry["user_id"])
		assert.Equal(t, "boom", entry["error"])
	})

	t.Run("context extractors inject attributes", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithContextValue("request_id", ctxKey{}),
		)
		ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
		log.InfoContext(ctx, "handled")

		assert.Equal(t, "req-1", decode(t, buf)["request_id"])
	})

	t.Run("credentials are redacted", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		log.Info("login", slog.String("password", "hunter22"), slog.String("Authorization", "Bearer abc"))

		entry := decode(t, buf)
		assert.Equal(t, "[REDACTED]", entry["password"])
		assert.Equal(t, "[REDACTED]", entry["Authorization"])
	})

	t.Run("production environment", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithEnvironment("production", "labgrid"))
		log.Debug("hidden")
		assert.Zero(t, buf.Len())

		log.Info("shown")
		entry := decode(t, buf)
		assert.Equal(t, "labgrid", entry["service"])
		assert.Equal(t, "production", entry["env"])
	})

	t.Run("level from config overrides environment", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		opts := append(logger.FromConfig(logger.Config{Env: "production", Level: "warn"}), logger.WithOutput(buf))
		log := logger.New(opts...)
		log.Info("hidden")
		assert.Zero(t, buf.Len())
		log.Warn("shown")
		assert.NotZero(t, buf.Len())
	})

	t.Run("extractors survive With", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithContextValue("request_id", ctxKey{}),
		).With(logger.Component("sweeper"))
		ctx := context.WithValue(context.Background(), ctxKey{}, "req-2")
		log.InfoContext(ctx, "swept")

		entry := decode(t, buf)
		assert.Equal(t, "req-2", entry["request_id"])
		assert.Equal(t, "sweeper", entry["component"])
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
	})
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Error(nil))
	assert.Equal(t, slog.Attr{}, logger.UserID(""))
	assert.Equal(t, slog.Attr{}, logger.Errors(nil, nil))
	assert.Equal(t, "errors", logger.Errors(nil, errors.New("x")).Key)
	assert.Equal(t, "stripe", logger.Provider("stripe").Value.String())
}
