package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

// VerifyPayPalEvent asks PayPal to verify the delivery signature.
// A failed verification call is returned as ErrVerificationFailed, a rejected signature as ErrInvalidSignature.
func (s *service) VerifyPayPalEvent(ctx context.Context, tr PayPalTransmission, payload []byte) (PayPalEvent, error) {
	if s.paypal == nil {
		return PayPalEvent{}, ErrProviderDisabled
	}
	if !tr.Complete() {
		return PayPalEvent{}, ErrInvalidSignature
	}

	var ev PayPalEvent
	if err := json.Unmarshal(payload, &ev); err != nil || ev.ID == "" || ev.EventType == "" {
		return PayPalEvent{}, errors.Join(ErrMalformedEvent, err)
	}

	ok, err := call(ctx, s, ProviderPayPal, "verify_webhook", func(ctx context.Context) (bool, error) {
		return s.paypal.VerifyWebhookSignature(ctx, tr, payload)
	})
	if err != nil {
		return PayPalEvent{}, errors.Join(ErrVerificationFailed, err)
	}
	if !ok {
		return PayPalEvent{}, ErrInvalidSignature
	}
	return ev, nil
}

func (s *service) HandlePayPalEvent(ctx context.Context, ev PayPalEvent, payload []byte) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "HandlePayPalEvent", trace.WithAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", ev.EventType),
	))
	defer span.End()

	var handle func(context.Context, PayPalEvent) (Outcome, error)
	switch ev.EventType {
	case paypalSaleCompleted:
		handle = s.paypalSaleCompleted
	case paypalSubscriptionActivated:
		handle = s.paypalSubscriptionActivated
	case paypalSubscriptionCancelled, paypalSubscriptionSuspended, paypalSubscriptionExpired:
		handle = s.paypalSubscriptionEnded
	case paypalPaymentFailed:
		handle = s.paypalPaymentFailed
	default:
		span.SetStatus(codes.Ok, "ignored")
		return OutcomeIgnored, nil
	}

	out, err := s.process(ctx, ProviderPayPal, ev.ID, ev.EventType, payload, func(ctx context.Context) (Outcome, error) {
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

func paypalEventTime(ev PayPalEvent) time.Time {
	return ev.CreateTime.UTC()
}

// paypalAccount finds the account bound to the subscription, falling back to the custom id set at checkout.
func (s *service) paypalAccount(ctx context.Context, subscriptionID, customID string) (*entitlement.Account, error) {
	acc, err := findAccount(s.accounts.FindByProvider(ctx, entitlement.PayPalRef(subscriptionID)))
	if acc != nil || err != nil || customID == "" {
		return acc, err
	}
	return findAccount(s.accounts.Get(ctx, customID))
}

func (s *service) paypalSubscription(ctx context.Context, id string) (*PayPalSubscription, error) {
	return call(ctx, s, ProviderPayPal, "get_subscription", func(ctx context.Context) (*PayPalSubscription, error) {
		return s.paypal.GetSubscription(ctx, id)
	})
}

// paypalPeriodEnd prefers PayPal's next billing time over the catalog duration.
func paypalPeriodEnd(sub *PayPalSubscription, start time.Time, months int) time.Time {
	if nb := sub.BillingInfo.NextBillingTime; nb != nil && nb.After(start) {
		return nb.UTC()
	}
	return start.AddDate(0, months, 0)
}

func (s *service) paypalSubscriptionActivated(ctx context.Context, ev PayPalEvent) (Outcome, error) {
	var res paypalSubscriptionResource
	if err := json.Unmarshal(ev.Resource, &res); err != nil || res.ID == "" {
		return OutcomeUnresolved, nil
	}
	offer, err := s.catalog.ResolvePayPalPlan(res.PlanID)
	if err != nil {
		s.log.WarnContext(ctx, "unknown paypal plan", logger.EventID(ev.ID), logger.Plan(res.PlanID))
		return OutcomeUnresolved, nil
	}

	sub, err := s.paypalSubscription(ctx, res.ID)
	if err != nil {
		return "", err
	}
	if !sub.Active() {
		return OutcomeStale, nil
	}

	acc, err := s.paypalAccount(ctx, res.ID, firstNonEmpty(res.CustomID, sub.CustomID))
	if err != nil {
		return "", err
	}
	if acc == nil {
		return OutcomeUnresolved, nil
	}

	at := paypalEventTime(ev)
	end := paypalPeriodEnd(sub, at, offer.Months)
	tr := entitlement.Activate(entitlement.EventCheckoutCompleted, offer.Plan, at, &end, entitlement.PayPalRef(res.ID), at)
	_, err = s.accounts.ApplyPlanTransition(ctx, acc.ID, tr)
	return classify(err)
}

func (s *service) paypalSaleCompleted(ctx context.Context, ev PayPalEvent) (Outcome, error) {
	var sale paypalSale
	if err := json.Unmarshal(ev.Resource, &sale); err != nil {
		return OutcomeUnresolved, nil
	}
	if sale.BillingAgreementID == "" {
		// One-time orders are settled by CapturePayPalOrder.
		return OutcomeIgnored, nil
	}

	sub, err := s.paypalSubscription(ctx, sale.BillingAgreementID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return OutcomeUnresolved, nil
		}
		return "", err
	}
	offer, err := s.catalog.ResolvePayPalPlan(sub.PlanID)
	if err != nil {
		s.log.WarnContext(ctx, "unknown paypal plan", logger.EventID(ev.ID), logger.Plan(sub.PlanID))
		return OutcomeUnresolved, nil
	}

	acc, err := s.paypalAccount(ctx, sub.ID, firstNonEmpty(sub.CustomID, sale.Custom))
	if err != nil {
		return "", err
	}
	if acc == nil {
		return OutcomeUnresolved, nil
	}

	amount, err := decimal.NewFromString(sale.Amount.Total)
	if err != nil {
		amount = decimal.Zero
	}

	at := paypalEventTime(ev)
	end := paypalPeriodEnd(sub, at, offer.Months)
	tr := entitlement.Activate(entitlement.EventRenewed, offer.Plan, at, &end, entitlement.PayPalRef(sub.ID), at).
		WithPayment(entitlement.Payment{
			Amount:   amount,
			Currency: sale.Amount.Currency,
			EventID:  ev.ID,
			Metadata: map[string]string{"saleId": sale.ID},
		})
	if _, err := s.accounts.ApplyPlanTransition(ctx, acc.ID, tr); err != nil {
		return classify(err)
	}
	if acc.LastPaymentFailed {
		if err := s.accounts.ClearPaymentFailed(ctx, acc.ID); err != nil {
			return "", err
		}
	}
	return OutcomeApplied, nil
}

// paypalSubscriptionEnded downgrades unless a live read shows the subscription is active again.
func (s *service) paypalSubscriptionEnded(ctx context.Context, ev PayPalEvent) (Outcome, error) {
	var res paypalSubscriptionResource
	if err := json.Unmarshal(ev.Resource, &res); err != nil || res.ID == "" {
		return OutcomeUnresolved, nil
	}

	acc, err := findAccount(s.accounts.FindByProvider(ctx, entitlement.PayPalRef(res.ID)))
	if err != nil {
		return "", err
	}
	if acc == nil {
		return OutcomeUnresolved, nil
	}

	sub, err := s.paypalSubscription(ctx, res.ID)
	switch {
	case errors.Is(err, ErrProviderNotFound):
	case err != nil:
		return "", err
	case sub.Active():
		return OutcomeStale, nil
	}

	_, err = s.accounts.ApplyPlanTransition(ctx, acc.ID,
		entitlement.Downgrade(entitlement.EventProviderCancelled, paypalEventTime(ev)))
	return classify(err)
}

func (s *service) paypalPaymentFailed(ctx context.Context, ev PayPalEvent) (Outcome, error) {
	var res paypalSubscriptionResource
	if err := json.Unmarshal(ev.Resource, &res); err != nil || res.ID == "" {
		return OutcomeUnresolved, nil
	}
	acc, err := findAccount(s.accounts.FindByProvider(ctx, entitlement.PayPalRef(res.ID)))
	if err != nil {
		return "", err
	}
	if acc == nil {
		return OutcomeUnresolved, nil
	}
	return s.paymentFailed(ctx, acc)
}
