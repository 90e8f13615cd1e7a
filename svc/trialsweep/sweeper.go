// Package trialsweep downgrades accounts whose promotional trial or prepaid period has ended.
package trialsweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/labgrid/pkg/idempotency"
	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/pkg/metrics"
	"github.com/dmitrymomot/labgrid/pkg/trial"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

// Sweep triggers, used as metric labels.
const (
	TriggerCron   = "cron"
	TriggerTicker = "ticker"
	TriggerCLI    = "cli"
)

// Config holds sweeper settings.
type Config struct {
	CronSecret string        `env:"CRON_SECRET"`
	Interval   time.Duration `env:"TRIAL_SWEEP_INTERVAL" envDefault:"0"`
}

// Report summarizes one sweep.
type Report struct {
	Processed int       `json:"processed"`
	Updated   int       `json:"updated"`
	Errors    int       `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier tells users their trial has ended.
type Notifier interface {
	TrialExpired(ctx context.Context, acc *entitlement.Account) error
}

// Sweeper selects expired trial and prepaid accounts and downgrades them.
type Sweeper struct {
	accounts entitlement.Service
	clock    trial.Clock
	notifier Notifier
	locks    idempotency.Store
	log      *slog.Logger
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithNotifier sends trial-expired notices.
func WithNotifier(n Notifier) Option {
	return func(s *Sweeper) { s.notifier = n }
}

// WithLock guards Run so that one replica sweeps per interval.
func WithLock(store idempotency.Store) Option {
	return func(s *Sweeper) { s.locks = store }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a sweeper. The clock decides trial expiry and the downgrade time.
func New(accounts entitlement.Service, clock trial.Clock, opts ...Option) *Sweeper {
	if accounts == nil {
		panic("trialsweep: entitlement service is required")
	}
	s := &Sweeper{accounts: accounts, clock: clock, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("trialsweep"))
	return s
}

// Sweep runs one pass. Per-account failures are counted and never abort the pass.
// It fails only when the candidate accounts cannot be listed.
func (s *Sweeper) Sweep(ctx context.Context, trigger string) (Report, error) {
	start := time.Now()
	now := s.clock.Now()
	rep := Report{Timestamp: now}
	metrics.SweepRuns.WithLabelValues(trigger).Inc()

	trials, err := s.accounts.ListByState(ctx, entitlement.StateTrial)
	if err != nil {
		return rep, err
	}
	for _, acc := range trials {
		if !s.clock.IsExpired(acc.PlanStartDate) {
			rep.Processed++
			metrics.SweepAccounts.WithLabelValues("skipped").Inc()
			continue
		}
		s.expire(ctx, &rep, acc, entitlement.EventTrialExpired, now)
	}

	prepaid, err := s.accounts.ListByState(ctx, entitlement.StatePrepaid)
	if err != nil {
		return rep, err
	}
	for _, acc := range prepaid {
		if acc.PlanEndDate == nil || now.Before(*acc.PlanEndDate) {
			rep.Processed++
			metrics.SweepAccounts.WithLabelValues("skipped").Inc()
			continue
		}
		s.expire(ctx, &rep, acc, entitlement.EventPrepaidExpired, now)
	}

	s.log.InfoContext(ctx, "sweep finished",
		slog.String("trigger", trigger),
		slog.Int("processed", rep.Processed),
		slog.Int("updated", rep.Updated),
		slog.Int("errors", rep.Errors),
		logger.Duration(time.Since(start)),
	)
	return rep, nil
}

func (s *Sweeper) expire(ctx context.Context, rep *Report, acc *entitlement.Account, ev entitlement.Event, now time.Time) {
	rep.Processed++

	_, err := s.accounts.ApplyPlanTransition(ctx, acc.ID, entitlement.Expire(ev, now))
	switch {
	case err == nil:
	case errors.Is(err, entitlement.ErrStateMismatch), errors.Is(err, entitlement.ErrStaleEvent):
		// Converted or renewed since it was listed.
		metrics.SweepAccounts.WithLabelValues("skipped").Inc()
		return
	default:
		rep.Errors++
		metrics.SweepAccounts.WithLabelValues(metrics.ResultFailed).Inc()
		s.log.ErrorContext(ctx, "failed to downgrade account", logger.UserID(acc.ID), slog.String("event", string(ev)), logger.Error(err))
		return
	}

	rep.Updated++
	metrics.SweepAccounts.WithLabelValues("updated").Inc()

	if ev == entitlement.EventTrialExpired && s.notifier != nil {
		if err := s.notifier.TrialExpired(ctx, acc); err != nil {
			s.log.WarnContext(ctx, "failed to send trial expired notice", logger.UserID(acc.ID), logger.Error(err))
		}
	}
}

// Run sweeps every interval until ctx is done. With a lock store, each interval
// window is claimed first so concurrent replicas do not sweep twice.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !s.claim(ctx, interval) {
				continue
			}
			if _, err := s.Sweep(ctx, TriggerTicker); err != nil {
				s.log.ErrorContext(ctx, "sweep failed", logger.Error(err))
			}
		}
	}
}

func (s *Sweeper) claim(ctx context.Context, interval time.Duration) bool {
	if s.locks == nil {
		return true
	}
	window := s.clock.Now().Truncate(interval).Format(time.RFC3339)
	ok, err := s.locks.Claim(ctx, idempotency.Key("trialsweep", window), interval)
	if err != nil {
		s.log.WarnContext(ctx, "failed to claim sweep lock", logger.Error(err))
		return false
	}
	return ok
}
