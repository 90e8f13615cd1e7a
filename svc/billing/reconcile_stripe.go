package billing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/pkg/plan"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

func (s *service) VerifyStripeEvent(payload []byte, signature string) (stripe.Event, error) {
	if s.stripe == nil || s.stripeSecret == "" {
		return stripe.Event{}, ErrProviderDisabled
	}
	if signature == "" {
		return stripe.Event{}, ErrInvalidSignature
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.stripeSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, errors.Join(ErrInvalidSignature, err)
	}
	if ev.ID == "" || ev.Data == nil {
		return stripe.Event{}, ErrMalformedEvent
	}
	return ev, nil
}

func (s *service) HandleStripeEvent(ctx context.Context, ev stripe.Event, payload []byte) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "HandleStripeEvent", trace.WithAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", string(ev.Type)),
	))
	defer span.End()

	var handle func(context.Context, stripe.Event) (Outcome, error)
	switch string(ev.Type) {
	case stripeCheckoutCompleted:
		handle = s.stripeCheckoutCompleted
	case stripeSubscriptionUpdated:
		handle = s.stripeSubscriptionUpdated
	case stripeSubscriptionDeleted:
		handle = s.stripeSubscriptionDeleted
	case stripeInvoicePaymentFailed:
		handle = s.stripePaymentFailed
	default:
		span.SetStatus(codes.Ok, "ignored")
		return OutcomeIgnored, nil
	}

	out, err := s.process(ctx, ProviderStripe, ev.ID, string(ev.Type), payload, func(ctx context.Context) (Outcome, error) {
		return handle(ctx, ev)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		return "", err
	}
	span.SetStatus(codes.Ok, string(out))
	return out, nil
}

func stripeEventTime(ev stripe.Event) time.Time {
	return time.Unix(ev.Created, 0).UTC()
}

func (s *service) stripeCheckoutCompleted(ctx context.Context, ev stripe.Event) (Outcome, error) {
	var sess stripeCheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
		s.log.WarnContext(ctx, "malformed checkout session", logger.EventID(ev.ID), logger.Error(err))
		return OutcomeUnresolved, nil
	}
	if sess.PaymentStatus == "unpaid" {
		return OutcomeIgnored, nil
	}

	t, err := plan.Parse(sess.Metadata[metaPlanType])
	if err != nil || t == plan.Free {
		s.log.WarnContext(ctx, "checkout session without purchasable plan", logger.EventID(ev.ID), logger.Plan(sess.Metadata[metaPlanType]))
		return OutcomeUnresolved, nil
	}
	months := parseMonths(sess.Metadata[metaDuration])

	acc, err := s.resolveStripeAccount(ctx, sess)
	if err != nil {
		return "", err
	}
	if acc == nil {
		s.log.WarnContext(ctx, "checkout session matches no account", logger.EventID(ev.ID), logger.Email(sess.email()))
		return OutcomeUnresolved, nil
	}

	at := stripeEventTime(ev)
	end := at.AddDate(0, months, 0)
	ref := entitlement.StripeRef(firstNonEmpty(sess.Subscription, sess.ID))
	tr := entitlement.Activate(entitlement.EventCheckoutCompleted, t, at, &end, ref, at).
		WithPayment(entitlement.Payment{
			Amount:   fromMinorUnits(sess.AmountTotal, sess.Currency),
			Currency: sess.Currency,
			EventID:  ev.ID,
			Metadata: map[string]string{"sessionId": sess.ID, metaDuration: strconv.Itoa(months)},
		})

	if _, err := s.accounts.ApplyPlanTransition(ctx, acc.ID, tr); err != nil {
		return classify(err)
	}

	// The customer is bound only with the plan it paid for.
	if sess.Customer != "" && acc.StripeCustomerID != sess.Customer {
		if err := s.accounts.BindStripeCustomer(ctx, acc.ID, sess.Customer); err != nil {
			return classify(err)
		}
	}
	return OutcomeApplied, nil
}

// resolveStripeAccount finds the buyer by metadata user id, client reference,
// bound customer, customer metadata and finally email.
func (s *service) resolveStripeAccount(ctx context.Context, sess stripeCheckoutSession) (*entitlement.Account, error) {
	for _, id := range []string{sess.Metadata[metaUserID], sess.ClientReferenceID} {
		if id == "" {
			continue
		}
		if acc, err := findAccount(s.accounts.Get(ctx, id)); acc != nil || err != nil {
			return acc, err
		}
	}

	if sess.Customer != "" {
		if acc, err := findAccount(s.accounts.FindByStripeCustomer(ctx, sess.Customer)); acc != nil || err != nil {
			return acc, err
		}
		if s.stripe != nil {
			cust, err := call(ctx, s, ProviderStripe, "get_customer", func(ctx context.Context) (*StripeCustomer, error) {
				return s.stripe.GetCustomer(ctx, sess.Customer)
			})
			switch {
			case errors.Is(err, ErrProviderNotFound):
			case err != nil:
				return nil, err
			case cust.Metadata[metaUserID] != "":
				if acc, err := findAccount(s.accounts.Get(ctx, cust.Metadata[metaUserID])); acc != nil || err != nil {
					return acc, err
				}
			}
		}
	}

	if email := sess.email(); email != "" {
		return findAccount(s.accounts.FindByEmail(ctx, email))
	}
	return nil, nil
}

// stripeSubscriptionUpdated re-applies the plan named in the subscription
// metadata. It only renews the Stripe subscription the account is billed by:
// updates for other subscriptions, for accounts billed elsewhere or without a
// plan in the metadata are ignored.
func (s *service) stripeSubscriptionUpdated(ctx context.Context, ev stripe.Event) (Outcome, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
		return OutcomeUnresolved, nil
	}
	if !stripeGrantingStatuses[sub.Status] {
		// Ended subscriptions are downgraded by customer.subscription.deleted.
		return OutcomeIgnored, nil
	}
	v, ok := sub.Metadata[metaPlanType]
	if !ok || v == "" {
		return OutcomeIgnored, nil
	}
	t, err := plan.Parse(v)
	if err != nil || t == plan.Free {
		s.log.WarnContext(ctx, "subscription metadata names no purchasable plan", logger.EventID(ev.ID), logger.Plan(v))
		return OutcomeUnresolved, nil
	}

	acc, err := findAccount(s.accounts.FindByProvider(ctx, entitlement.StripeRef(sub.ID)))
	if err != nil {
		return "", err
	}
	if acc == nil {
		if acc, err = findAccount(s.accounts.FindByStripeCustomer(ctx, sub.Customer)); err != nil {
			return "", err
		}
		if acc == nil {
			return OutcomeUnresolved, nil
		}
		s.log.InfoContext(ctx, "update for a subscription the account is not billed by",
			logger.UserID(acc.ID), slog.String("subscription", sub.ID), logger.Provider(string(acc.Provider.Kind)))
		return OutcomeIgnored, nil
	}

	var start time.Time
	var end *time.Time
	if ps, pe := sub.period(); pe > 0 {
		start = time.Unix(ps, 0).UTC()
		e := time.Unix(pe, 0).UTC()
		end = &e
	}

	tr := entitlement.Activate(entitlement.EventRenewed, t, start, end, entitlement.StripeRef(sub.ID), stripeEventTime(ev))
	tr.From = []entitlement.State{entitlement.StatePaidStripe}
	if _, err := s.accounts.ApplyPlanTransition(ctx, acc.ID, tr); err != nil {
		return classify(err)
	}
	if acc.LastPaymentFailed && sub.Status == string(stripe.SubscriptionStatusActive) {
		if err := s.accounts.ClearPaymentFailed(ctx, acc.ID); err != nil {
			return "", err
		}
	}
	return OutcomeApplied, nil
}

// stripeSubscriptionDeleted downgrades the customer's account. Subscription ids
// rotate, so the account is found by customer; when it is billed by another
// Stripe subscription, that one is checked live and only an active one is kept.
func (s *service) stripeSubscriptionDeleted(ctx context.Context, ev stripe.Event) (Outcome, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
		return OutcomeUnresolved, nil
	}

	acc, err := findAccount(s.accounts.FindByStripeCustomer(ctx, sub.Customer))
	if err != nil {
		return "", err
	}
	if acc == nil {
		if acc, err = findAccount(s.accounts.FindByProvider(ctx, entitlement.StripeRef(sub.ID))); err != nil {
			return "", err
		}
		if acc == nil {
			return OutcomeUnresolved, nil
		}
	}
	if acc.Provider.Kind != entitlement.ProviderStripe {
		s.log.InfoContext(ctx, "cancellation for an account not billed by stripe",
			logger.UserID(acc.ID), slog.String("subscription", sub.ID), logger.Provider(string(acc.Provider.Kind)))
		return OutcomeStale, nil
	}

	if current := acc.StripeSubscriptionID(); current != sub.ID {
		live, err := call(ctx, s, ProviderStripe, "get_subscription", func(ctx context.Context) (*StripeSubscriptionState, error) {
			return s.stripe.GetSubscription(ctx, current)
		})
		if err != nil && !errors.Is(err, ErrProviderNotFound) {
			return "", err
		}
		if live != nil && live.Active() {
			s.log.InfoContext(ctx, "cancellation for a replaced subscription",
				logger.UserID(acc.ID), slog.String("subscription", sub.ID), slog.String("current", current))
			return OutcomeStale, nil
		}
	}

	_, err = s.accounts.ApplyPlanTransition(ctx, acc.ID,
		entitlement.Downgrade(entitlement.EventProviderCancelled, stripeEventTime(ev)))
	return classify(err)
}

func (s *service) stripePaymentFailed(ctx context.Context, ev stripe.Event) (Outcome, error) {
	var inv stripeInvoice
	if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
		return OutcomeUnresolved, nil
	}
	acc, err := findAccount(s.accounts.FindByStripeCustomer(ctx, inv.Customer))
	if err != nil {
		return "", err
	}
	if acc == nil {
		return OutcomeUnresolved, nil
	}
	return s.paymentFailed(ctx, acc)
}

// paymentFailed flags the account and notifies the user. Access is kept until the provider cancels.
func (s *service) paymentFailed(ctx context.Context, acc *entitlement.Account) (Outcome, error) {
	if err := s.accounts.MarkPaymentFailed(ctx, acc.ID); err != nil {
		return classify(err)
	}
	if err := s.notifier.PaymentFailed(ctx, acc); err != nil {
		s.log.WarnContext(ctx, "failed to send payment failure notice", logger.UserID(acc.ID), logger.Error(err))
	}
	return OutcomeApplied, nil
}

func parseMonths(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return plan.DefaultDurationMonths
	}
	return n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
