package main

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/labgrid/pkg/archive"
	"github.com/dmitrymomot/labgrid/pkg/config"
	"github.com/dmitrymomot/labgrid/pkg/email"
	"github.com/dmitrymomot/labgrid/pkg/httpserver"
	"github.com/dmitrymomot/labgrid/pkg/idempotency"
	"github.com/dmitrymomot/labgrid/pkg/jwt"
	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/pkg/mongo"
	"github.com/dmitrymomot/labgrid/pkg/opensearch"
	"github.com/dmitrymomot/labgrid/pkg/pg"
	"github.com/dmitrymomot/labgrid/pkg/ratelimit"
	"github.com/dmitrymomot/labgrid/pkg/redis"
	"github.com/dmitrymomot/labgrid/pkg/trial"
	"github.com/dmitrymomot/labgrid/svc/billing"
	"github.com/dmitrymomot/labgrid/svc/notify"
	"github.com/dmitrymomot/labgrid/svc/trialsweep"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

type storageConfig struct {
	Driver      string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	AutoMigrate bool   `env:"PG_AUTO_MIGRATE" envDefault:"false"`
}

// appConfig collects the configuration of every component. Connection configs
// with required variables are loaded only for the selected driver.
type appConfig struct {
	Log         logger.Config
	Storage     storageConfig
	Postgres    pg.Config
	Mongo       mongo.Config
	Redis       redis.Config
	OpenSearch  opensearch.Config
	HTTP        httpserver.Config
	JWT         jwt.Config
	RateLimit   ratelimit.Config
	Idempotency idempotency.Config
	Trial       trial.Config
	Sweep       trialsweep.Config
	Billing     billing.Config
	Email       email.Config
	Notify      notify.Config
	Archive     archive.Config
}

func loadConfig(needHTTP bool) (*appConfig, error) {
	var cfg appConfig
	loaders := []func() error{
		func() error { return config.Load(&cfg.Log) },
		func() error { return config.Load(&cfg.Redis) },
		func() error { return config.Load(&cfg.OpenSearch) },
		func() error { return config.Load(&cfg.Idempotency) },
		func() error { return config.Load(&cfg.Trial) },
		func() error { return config.Load(&cfg.Sweep) },
		func() error { return config.Load(&cfg.Billing) },
		func() error { return config.Load(&cfg.Email) },
		func() error { return config.Load(&cfg.Notify) },
		func() error { return config.Load(&cfg.Archive) },
	}
	if needHTTP {
		loaders = append(loaders,
			func() error { return config.Load(&cfg.HTTP) },
			func() error { return config.Load(&cfg.JWT) },
			func() error { return config.Load(&cfg.RateLimit) },
		)
	}

	if err := config.Load(&cfg.Storage); err != nil {
		return nil, err
	}
	switch cfg.Storage.Driver {
	case DriverPostgres:
		loaders = append(loaders, func() error { return config.Load(&cfg.Postgres) })
	case DriverMongo:
		loaders = append(loaders, func() error { return config.Load(&cfg.Mongo) })
	case DriverMemory:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Storage.Driver)
	}

	for _, load := range loaders {
		if err := load(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}
