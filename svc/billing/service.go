package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v82"
	"go.opentelemetry.io/otel"

	"github.com/dmitrymomot/labgrid/pkg/apperr"
	"github.com/dmitrymomot/labgrid/pkg/idempotency"
	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/pkg/metrics"
	"github.com/dmitrymomot/labgrid/pkg/plan"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
)

// Outcome is the result of reconciling one webhook event.
type Outcome string

const (
	OutcomeApplied    Outcome = "applied"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeStale      Outcome = "stale"
	OutcomeUnresolved Outcome = "unresolved"
	outcomeFailed     Outcome = "failed"
)

var tracer = otel.Tracer("github.com/dmitrymomot/labgrid/svc/billing")

// Notifier delivers billing notifications to users.
type Notifier interface {
	PaymentFailed(ctx context.Context, acc *entitlement.Account) error
}

// Archiver keeps verified raw webhook payloads.
type Archiver interface {
	ArchiveEvent(ctx context.Context, provider, eventID string, payload []byte) error
}

// Service turns provider events and checkout flows into plan transitions.
type Service interface {
	// Webhooks
	VerifyStripeEvent(payload []byte, signature string) (stripe.Event, error)
	VerifyPayPalEvent(ctx context.Context, tr PayPalTransmission, payload []byte) (PayPalEvent, error)
	HandleStripeEvent(ctx context.Context, ev stripe.Event, payload []byte) (Outcome, error)
	HandlePayPalEvent(ctx context.Context, ev PayPalEvent, payload []byte) (Outcome, error)

	// Checkout
	CreateStripeCheckout(ctx context.Context, userID string, t plan.Type, months int) (*CheckoutLink, error)
	CreatePayPalSubscription(ctx context.Context, userID string, t plan.Type, months int) (*CheckoutLink, error)
	CreatePayPalOrder(ctx context.Context, userID string, t plan.Type, months int) (*CheckoutLink, error)
	CapturePayPalOrder(ctx context.Context, userID, orderID string) (*entitlement.Account, error)

	// VerifyAccount re-reads the provider state of the account's subscription
	// and downgrades the account when the provider no longer bills it.
	VerifyAccount(ctx context.Context, userID string) (*entitlement.Account, error)
}

type service struct {
	accounts entitlement.Service
	catalog  *plan.Catalog
	claims   idempotency.Store

	stripe       StripeClient
	stripeSecret string
	paypal       PayPalClient
	notifier     Notifier
	archiver     Archiver

	successURL  string
	cancelURL   string
	claimTTL    time.Duration
	inFlightTTL time.Duration
	timeout     time.Duration
	log         *slog.Logger
	now         func() time.Time
}

// NewService creates the billing service. Providers are enabled with WithStripe and WithPayPal.
func NewService(accounts entitlement.Service, catalog *plan.Catalog, claims idempotency.Store, opts ...ServiceOption) Service {
	if accounts == nil {
		panic("billing: entitlement service is required")
	}
	if catalog == nil {
		panic("billing: plan catalog is required")
	}
	if claims == nil {
		panic("billing: idempotency store is required")
	}

	s := &service{
		accounts:    accounts,
		catalog:     catalog,
		claims:      claims,
		notifier:    nopNotifier{},
		archiver:    nopArchiver{},
		claimTTL:    72 * time.Hour,
		inFlightTTL: 5 * time.Minute,
		timeout:     15 * time.Second,
		log:         slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("billing"))
	return s
}

// process claims the event id, runs fn and records the outcome.
//
// The claim is taken for the in-flight TTL and extended to the full claim TTL
// only once fn has finished, so an event whose processing died with the
// process is handled again on the provider's next retry. A failed run
// releases the claim at once.
func (s *service) process(ctx context.Context, provider, eventID, eventType string, payload []byte, fn func(context.Context) (Outcome, error)) (Outcome, error) {
	log := s.log.With(logger.Provider(provider), logger.EventID(eventID), logger.EventType(eventType))

	key := idempotency.Key(provider, eventID)
	claimed, err := s.claims.Claim(ctx, key, s.inFlightTTL)
	if err != nil {
		metrics.ReconcileOutcomes.WithLabelValues(provider, string(outcomeFailed)).Inc()
		return "", err
	}
	if !claimed {
		log.InfoContext(ctx, "duplicate webhook event")
		metrics.ReconcileOutcomes.WithLabelValues(provider, string(OutcomeDuplicate)).Inc()
		return OutcomeDuplicate, nil
	}

	if err := s.archiver.ArchiveEvent(ctx, provider, eventID, payload); err != nil {
		log.WarnContext(ctx, "failed to archive webhook payload", logger.Error(err))
	}

	out, err := fn(ctx)
	if err != nil {
		if rerr := s.claims.Release(context.WithoutCancel(ctx), key); rerr != nil {
			log.ErrorContext(ctx, "failed to release event claim", logger.Error(rerr))
		}
		log.ErrorContext(ctx, "webhook event processing failed", logger.Error(err))
		metrics.ReconcileOutcomes.WithLabelValues(provider, string(outcomeFailed)).Inc()
		return "", err
	}

	if err := s.claims.Extend(context.WithoutCancel(ctx), key, s.claimTTL); err != nil {
		// Natural transaction keys still make a redelivery harmless.
		log.WarnContext(ctx, "failed to extend event claim", logger.Error(err))
	}

	level := slog.LevelInfo
	if out == OutcomeUnresolved {
		level = slog.LevelWarn
	}
	log.Log(ctx, level, "webhook event reconciled", slog.String("outcome", string(out)))
	metrics.ReconcileOutcomes.WithLabelValues(provider, string(out)).Inc()
	return out, nil
}

// classify maps an entitlement error onto a reconcile outcome.
// Only unexpected errors are returned; they make the provider retry.
func classify(err error) (Outcome, error) {
	switch {
	case err == nil:
		return OutcomeApplied, nil
	case errors.Is(err, entitlement.ErrStaleEvent), errors.Is(err, entitlement.ErrStateMismatch):
		return OutcomeStale, nil
	case errors.Is(err, entitlement.ErrAccountNotFound), errors.Is(err, apperr.ErrInvalid):
		return OutcomeUnresolved, nil
	}
	return "", err
}

// call bounds a provider call with the provider timeout and counts it.
func call[T any](ctx context.Context, s *service, provider, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := fn(ctx)
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultFailed
	}
	metrics.ProviderCalls.WithLabelValues(provider, op, result).Inc()
	return v, err
}

// findAccount returns nil without error when no account matches.
func findAccount(acc *entitlement.Account, err error) (*entitlement.Account, error) {
	if errors.Is(err, entitlement.ErrAccountNotFound) {
		return nil, nil
	}
	return acc, err
}

type nopNotifier struct{}

func (nopNotifier) PaymentFailed(context.Context, *entitlement.Account) error { return nil }

type nopArchiver struct{}

func (nopArchiver) ArchiveEvent(context.Context, string, string, []byte) error { return nil }
