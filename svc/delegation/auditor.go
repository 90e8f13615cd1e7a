package delegation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/labgrid/pkg/audit"
	"github.com/dmitrymomot/labgrid/pkg/logger"
)

const (
	defaultAuditRetries = 3
	defaultAuditBackoff = 50 * time.Millisecond
	auditWriteTimeout   = 5 * time.Second
)

// Auditor writes one audit record per mutation on behalf of an Actor.
type Auditor struct {
	records *audit.Logger
	log     *slog.Logger
	retries uint64
	backoff time.Duration
}

// AuditorOption configures an Auditor.
type AuditorOption func(*Auditor)

// WithAuditRetry sets how many times a failed write is retried and the first
// backoff interval, which doubles on every retry.
func WithAuditRetry(retries uint64, backoff time.Duration) AuditorOption {
	return func(a *Auditor) {
		a.retries = retries
		if backoff > 0 {
			a.backoff = backoff
		}
	}
}

// NewAuditor creates an Auditor over an audit logger.
func NewAuditor(l *audit.Logger, log *slog.Logger, opts ...AuditorOption) *Auditor {
	if l == nil {
		panic("delegation: audit logger is required")
	}
	if log == nil {
		log = slog.Default()
	}
	a := &Auditor{
		records: l,
		log:     log.With(logger.Component("audit")),
		retries: defaultAuditRetries,
		backoff: defaultAuditBackoff,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record appends the audit record of a completed mutation.
//
// The mutation has already happened, so the write is detached from the
// request context and retried with exponential backoff. An error is returned
// only after every attempt failed; it is logged here and the caller decides
// whether to surface it further.
func (a *Auditor) Record(ctx context.Context, actor *Actor, action audit.Action, entityType, entityID string, fields map[string]any) error {
	opts := []audit.RecordOption{
		audit.WithEntity(entityType, entityID),
		audit.WithOwner(actor.MainID()),
		audit.WithActiveUser(actor.AuditUser()),
	}
	for k, v := range fields {
		opts = append(opts, audit.WithField(k, v))
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	attempts := 0
	b := retry.WithMaxRetries(a.retries, retry.NewExponential(a.backoff))
	err := retry.Do(wctx, b, func(ctx context.Context) error {
		attempts++
		err := a.records.Log(ctx, action, opts...)
		if err == nil || errors.Is(err, audit.ErrRecordValidation) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		a.log.ErrorContext(ctx, "audit record not written",
			logger.UserID(actor.MainID()),
			logger.ActiveUserID(actor.Active.ID),
			slog.String("action", string(action)),
			slog.String("entity_id", entityID),
			slog.Int("attempts", attempts),
			logger.Error(err),
		)
		return err
	}
	if attempts > 1 {
		a.log.WarnContext(ctx, "audit record written after retry",
			slog.String("action", string(action)),
			slog.Int("attempts", attempts),
		)
	}
	return nil
}
