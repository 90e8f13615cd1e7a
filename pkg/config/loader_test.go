package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/labgrid/pkg/config"
)

type sweepConfig struct {
	Secret   string        `env:"TEST_CRON_SECRET,required"`
	Interval time.Duration `env:"TEST_SWEEP_INTERVAL" envDefault:"1h"`
}

type missingConfig struct {
	Value string `env:"TEST_CONFIG_DEFINITELY_MISSING,required"`
}

func TestLoad(t *testing.T) {
	config.SetDotenvFiles("testdata/does-not-exist.env")
	t.Setenv("TEST_CRON_SECRET", "s3cret")
	config.Reset()

	var cfg sweepConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "s3cret", cfg.Secret)
	assert.Equal(t, time.Hour, cfg.Interval)

	t.Run("cached after first load", func(t *testing.T) {
		t.Setenv("TEST_CRON_SECRET", "changed")
		var again sweepConfig
		require.NoError(t, config.Load(&again))
		assert.Equal(t, "s3cret", again.Secret)
	})

	t.Run("reset forces a new parse", func(t *testing.T) {
		t.Setenv("TEST_CRON_SECRET", "changed")
		config.Reset()
		var again sweepConfig
		require.NoError(t, config.Load(&again))
		assert.Equal(t, "changed", again.Secret)
	})
}

func TestLoad_Errors(t *testing.T) {
	var nilCfg *sweepConfig
	assert.ErrorIs(t, config.Load(nilCfg), config.ErrNilPointer)

	var cfg missingConfig
	assert.ErrorIs(t, config.Load(&cfg), config.ErrParsingConfig)
	assert.Panics(t, func() { config.MustLoad(&cfg) })
}
