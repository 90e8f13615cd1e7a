package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/labgrid/db"
	"github.com/dmitrymomot/labgrid/pkg/archive"
	"github.com/dmitrymomot/labgrid/pkg/audit"
	"github.com/dmitrymomot/labgrid/pkg/clientip"
	"github.com/dmitrymomot/labgrid/pkg/email"
	"github.com/dmitrymomot/labgrid/pkg/httpserver"
	"github.com/dmitrymomot/labgrid/pkg/idempotency"
	"github.com/dmitrymomot/labgrid/pkg/jwt"
	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/pkg/mongo"
	"github.com/dmitrymomot/labgrid/pkg/opensearch"
	"github.com/dmitrymomot/labgrid/pkg/pg"
	"github.com/dmitrymomot/labgrid/pkg/plan"
	"github.com/dmitrymomot/labgrid/pkg/redis"
	"github.com/dmitrymomot/labgrid/pkg/requestid"
	"github.com/dmitrymomot/labgrid/pkg/trial"
	"github.com/dmitrymomot/labgrid/svc/billing"
	"github.com/dmitrymomot/labgrid/svc/delegation"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
	entmem "github.com/dmitrymomot/labgrid/svc/entitlement/store/memstore"
	entmongo "github.com/dmitrymomot/labgrid/svc/entitlement/store/mongostore"
	entpg "github.com/dmitrymomot/labgrid/svc/entitlement/store/pgstore"
	"github.com/dmitrymomot/labgrid/svc/inventory"
	invmem "github.com/dmitrymomot/labgrid/svc/inventory/store/memstore"
	invmongo "github.com/dmitrymomot/labgrid/svc/inventory/store/mongostore"
	invpg "github.com/dmitrymomot/labgrid/svc/inventory/store/pgstore"
	"github.com/dmitrymomot/labgrid/svc/notify"
	"github.com/dmitrymomot/labgrid/svc/trialsweep"
)

// app holds the wired services shared by every command.
type app struct {
	cfg *appConfig
	log *slog.Logger

	clock     trial.Clock
	accounts  entitlement.Service
	inventory inventory.Service
	auditor   *delegation.Auditor
	audit     *audit.Reader
	claims    idempotency.Store
	billing   billing.Service
	sweeper   *trialsweep.Sweeper

	checks  map[string]httpserver.Check
	closers []func(context.Context) error
}

func newLogger(cfg logger.Config) *slog.Logger {
	log := logger.New(append(logger.FromConfig(cfg),
		logger.WithContextExtractors(requestid.LoggerExtractor(), jwt.LoggerExtractor()),
	)...)
	logger.SetAsDefault(log)
	return log
}

// newApp connects the configured backends and builds the services.
// Close must be called even when newApp fails halfway.
func newApp(ctx context.Context, cfg *appConfig, log *slog.Logger) (*app, error) {
	a := &app{
		cfg:    cfg,
		log:    log,
		clock:  trial.NewFromConfig(cfg.Trial),
		checks: map[string]httpserver.Check{},
	}

	var (
		entStore   entitlement.Store
		invStore   inventory.Store
		auditStore audit.Storage
	)
	switch cfg.Storage.Driver {
	case DriverPostgres:
		pool, err := pg.Connect(ctx, cfg.Postgres)
		if err != nil {
			return a, err
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
		if cfg.Storage.AutoMigrate {
			if err := pg.Migrate(ctx, pool, db.Migrations, db.MigrationsDir, cfg.Postgres, log); err != nil {
				return a, err
			}
		}
		entStore, invStore, auditStore = entpg.New(pool), invpg.New(pool), audit.NewPGStorage(pool)
		a.checks["postgres"] = pg.Healthcheck(pool)

	case DriverMongo:
		database, err := mongo.ConnectDatabase(ctx, cfg.Mongo)
		if err != nil {
			return a, err
		}
		a.closers = append(a.closers, database.Client().Disconnect)
		ents, invs, auds := entmongo.New(database), invmongo.New(database), audit.NewMongoStorage(database)
		if err := errors.Join(
			ents.EnsureIndexes(ctx),
			invs.EnsureIndexes(ctx),
			auds.EnsureIndexes(ctx),
		); err != nil {
			return a, err
		}
		entStore, invStore, auditStore = ents, invs, auds
		a.checks["mongo"] = mongo.Healthcheck(database.Client())

	default:
		log.WarnContext(ctx, "using in-memory storage, data is lost on restart")
		entStore, invStore, auditStore = entmem.New(), invmem.New(), audit.NewMemoryStorage()
	}

	if cfg.OpenSearch.Enabled() {
		client, err := opensearch.New(ctx, cfg.OpenSearch)
		if err != nil {
			return a, err
		}
		mirror := audit.NewOpenSearchMirror(auditStore, client, cfg.OpenSearch.AuditIndex, log)
		if err := mirror.EnsureIndex(ctx); err != nil {
			return a, err
		}
		auditStore = mirror
		a.checks["opensearch"] = opensearch.Healthcheck(client)
	}

	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return a, err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		a.claims = idempotency.NewRedisStore(client, cfg.Idempotency.Prefix)
		a.checks["redis"] = redis.Healthcheck(client)
	} else {
		a.claims = idempotency.NewMemoryStore(time.Minute)
	}

	sender, err := email.FromConfig(cfg.Email)
	if err != nil {
		return a, err
	}
	mailer := notify.New(sender, cfg.Notify,
		notify.WithTrialDays(cfg.Trial.Days),
		notify.WithLogger(log),
	)

	a.accounts = entitlement.NewService(entStore,
		entitlement.WithClock(a.clock),
		entitlement.WithLogger(log),
	)

	auditLog := audit.NewLogger(auditStore,
		audit.WithRequestIDExtractor(requestid.Extract),
		audit.WithIPExtractor(clientip.Extract),
		audit.WithFieldFilter(audit.NewFieldFilter()),
	)
	a.auditor = delegation.NewAuditor(auditLog, log)
	a.audit = audit.NewReader(auditStore)

	a.inventory = inventory.NewService(invStore, a.auditor,
		inventory.WithMembers(a.accounts),
		inventory.WithLogger(log),
	)

	if a.billing, err = a.newBilling(ctx, mailer); err != nil {
		return a, err
	}

	a.sweeper = trialsweep.New(a.accounts, a.clock,
		trialsweep.WithNotifier(mailer),
		trialsweep.WithLock(a.claims),
		trialsweep.WithLogger(log),
	)
	return a, nil
}

func (a *app) newBilling(ctx context.Context, mailer *notify.Mailer) (billing.Service, error) {
	cfg := a.cfg.Billing

	catalog := plan.NewCatalog()
	if cfg.StripeEnabled() || cfg.PayPalEnabled() {
		c, err := plan.LoadCatalogFile(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		catalog = c
	}

	opts := []billing.ServiceOption{
		billing.WithNotifier(mailer),
		billing.WithURLs(cfg.SuccessURL, cfg.CancelURL),
		billing.WithClaimTTL(a.cfg.Idempotency.TTL),
		billing.WithProviderTimeout(cfg.ProviderTimeout),
		billing.WithLogger(a.log),
	}
	if cfg.StripeEnabled() {
		opts = append(opts, billing.WithStripe(billing.NewStripeClient(cfg.StripeSecretKey), cfg.StripeWebhookSecret))
	} else {
		a.log.WarnContext(ctx, "stripe is not configured")
	}
	if cfg.PayPalEnabled() {
		opts = append(opts, billing.WithPayPal(billing.NewPayPalClient(cfg)))
	} else {
		a.log.WarnContext(ctx, "paypal is not configured")
	}
	if a.cfg.Archive.Enabled() {
		arch, err := archive.New(ctx, a.cfg.Archive)
		if err != nil {
			return nil, err
		}
		opts = append(opts, billing.WithArchiver(arch))
	}
	return billing.NewService(a.accounts, catalog, a.claims, opts...), nil
}

// Close releases backend connections in reverse order.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	return errors.Join(errs...)
}
