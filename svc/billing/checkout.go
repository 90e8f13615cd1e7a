package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dmitrymomot/labgrid/pkg/apperr"
	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/pkg/plan"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

func checkOffer(t plan.Type, months int) (int, error) {
	if !t.Valid() || t == plan.Free {
		return 0, ErrPaidPlanRequired
	}
	if months == 0 {
		months = plan.DefaultDurationMonths
	}
	if months < 0 {
		return 0, plan.ErrInvalidDuration
	}
	return months, nil
}

func (s *service) CreateStripeCheckout(ctx context.Context, userID string, t plan.Type, months int) (*CheckoutLink, error) {
	if s.stripe == nil {
		return nil, ErrProviderDisabled
	}
	months, err := checkOffer(t, months)
	if err != nil {
		return nil, err
	}
	priceID, err := s.catalog.StripePrice(t, months)
	if err != nil {
		return nil, err
	}
	acc, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	customerID := acc.StripeCustomerID
	if customerID == "" {
		customerID, err = call(ctx, s, ProviderStripe, "create_customer", func(ctx context.Context) (string, error) {
			return s.stripe.CreateCustomer(ctx, acc.Email, acc.Name, acc.ID)
		})
		if err != nil {
			return nil, err
		}
		if err := s.accounts.BindStripeCustomer(ctx, acc.ID, customerID); err != nil {
			return nil, err
		}
	}

	link, err := call(ctx, s, ProviderStripe, "create_checkout", func(ctx context.Context) (*CheckoutLink, error) {
		return s.stripe.CreateCheckoutSession(ctx, StripeCheckoutParams{
			CustomerID: customerID,
			UserID:     acc.ID,
			PriceID:    priceID,
			SuccessURL: s.successURL,
			CancelURL:  s.cancelURL,
			Metadata: map[string]string{
				metaUserID:   acc.ID,
				metaPlanType: string(t),
				metaDuration: strconv.Itoa(months),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "stripe checkout created", logger.UserID(acc.ID), logger.Plan(string(t)))
	return link, nil
}

func (s *service) CreatePayPalSubscription(ctx context.Context, userID string, t plan.Type, months int) (*CheckoutLink, error) {
	if s.paypal == nil {
		return nil, ErrProviderDisabled
	}
	months, err := checkOffer(t, months)
	if err != nil {
		return nil, err
	}
	planID, err := s.catalog.PayPalPlan(t, months)
	if err != nil {
		return nil, err
	}
	acc, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	link, err := call(ctx, s, ProviderPayPal, "create_subscription", func(ctx context.Context) (*CheckoutLink, error) {
		return s.paypal.CreateSubscription(ctx, planID, acc.ID, s.successURL, s.cancelURL)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "paypal subscription created", logger.UserID(acc.ID), logger.Plan(string(t)))
	return link, nil
}

func (s *service) CreatePayPalOrder(ctx context.Context, userID string, t plan.Type, months int) (*CheckoutLink, error) {
	if s.paypal == nil {
		return nil, ErrProviderDisabled
	}
	months, err := checkOffer(t, months)
	if err != nil {
		return nil, err
	}
	price, err := s.catalog.OrderPrice(t, months)
	if err != nil {
		return nil, err
	}
	acc, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	link, err := call(ctx, s, ProviderPayPal, "create_order", func(ctx context.Context) (*CheckoutLink, error) {
		return s.paypal.CreateOrder(ctx, PayPalOrderParams{
			CustomID:    orderCustomID(acc.ID, t, months),
			Description: fmt.Sprintf("LabGrid %s, %d months", t, months),
			Price:       price,
			ReturnURL:   s.successURL,
			CancelURL:   s.cancelURL,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "paypal order created", logger.UserID(acc.ID), logger.Plan(string(t)))
	return link, nil
}

// CapturePayPalOrder captures an approved one-time order and activates a prepaid plan.
// The order is read first so a foreign order is never captured. A retry after a
// successful capture skips the capture and applies the same transition again,
// which the account store treats as a no-op when it already landed.
func (s *service) CapturePayPalOrder(ctx context.Context, userID, orderID string) (*entitlement.Account, error) {
	if s.paypal == nil {
		return nil, ErrProviderDisabled
	}
	if orderID == "" {
		return nil, apperr.Invalidf("order id is required")
	}

	order, err := s.paypalOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	owner, t, months, err := parseOrderCustomID(order.CustomID)
	if err != nil || owner != userID {
		s.log.WarnContext(ctx, "order does not belong to user", logger.UserID(userID), slog.String("order", orderID))
		return nil, ErrOrderNotOwned
	}

	if order.Status != PayPalStatusCompleted {
		order, err = call(ctx, s, ProviderPayPal, "capture_order", func(ctx context.Context) (*PayPalOrder, error) {
			return s.paypal.CaptureOrder(ctx, orderID)
		})
		if errors.Is(err, ErrOrderAlreadyCaptured) {
			order, err = s.paypalOrder(ctx, orderID)
		}
		if err != nil {
			return nil, err
		}
		if order.Status != PayPalStatusCompleted {
			return nil, ErrPaymentNotCompleted
		}
	}

	at := order.At
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()
	end := at.AddDate(0, months, 0)
	tr := entitlement.Activate(entitlement.EventCheckoutCompleted, t, at, &end, entitlement.PayPalOrderRef(orderID), at).
		WithPayment(entitlement.Payment{
			Amount:   order.Amount,
			Currency: order.Currency,
			EventID:  orderID,
		})
	acc, err := s.accounts.ApplyPlanTransition(ctx, userID, tr)
	switch {
	case err == nil:
		s.log.InfoContext(ctx, "paypal order captured", logger.UserID(userID), logger.Plan(string(t)))
		return acc, nil
	case errors.Is(err, entitlement.ErrStaleEvent), errors.Is(err, entitlement.ErrStateMismatch):
		return s.accounts.Get(ctx, userID)
	}
	return nil, err
}

func (s *service) paypalOrder(ctx context.Context, orderID string) (*PayPalOrder, error) {
	order, err := call(ctx, s, ProviderPayPal, "get_order", func(ctx context.Context) (*PayPalOrder, error) {
		return s.paypal.GetOrder(ctx, orderID)
	})
	if errors.Is(err, ErrProviderNotFound) {
		return nil, ErrOrderNotOwned
	}
	return order, err
}

func orderCustomID(userID string, t plan.Type, months int) string {
	return strings.Join([]string{userID, string(t), strconv.Itoa(months)}, "|")
}

func parseOrderCustomID(v string) (string, plan.Type, int, error) {
	parts := strings.Split(v, "|")
	if len(parts) != 3 {
		return "", "", 0, ErrMalformedEvent
	}
	t, err := plan.Parse(parts[1])
	if err != nil {
		return "", "", 0, err
	}
	months, err := strconv.Atoi(parts[2])
	if err != nil || months <= 0 {
		return "", "", 0, plan.ErrInvalidDuration
	}
	return parts[0], t, months, nil
}

// VerifyAccount reconciles the account with its provider's live subscription state.
func (s *service) VerifyAccount(ctx context.Context, userID string) (*entitlement.Account, error) {
	acc, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	var active bool
	switch acc.Provider.Kind {
	case entitlement.ProviderStripe:
		if s.stripe == nil {
			return acc, nil
		}
		sub, err := call(ctx, s, ProviderStripe, "get_subscription", func(ctx context.Context) (*StripeSubscriptionState, error) {
			return s.stripe.GetSubscription(ctx, acc.Provider.ID)
		})
		if err != nil && !errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		active = sub != nil && sub.Active()
	case entitlement.ProviderPayPal:
		if s.paypal == nil {
			return acc, nil
		}
		sub, err := s.paypalSubscription(ctx, acc.Provider.ID)
		if err != nil && !errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		active = sub != nil && sub.Active()
	default:
		return acc, nil
	}

	if active {
		if !acc.LastPaymentFailed {
			return acc, nil
		}
		if err := s.accounts.ClearPaymentFailed(ctx, acc.ID); err != nil {
			return nil, err
		}
		return s.accounts.Get(ctx, acc.ID)
	}

	// Driven by the local clock, not a provider event time.
	tr := entitlement.Expire(entitlement.EventProviderCancelled, s.now().UTC())
	updated, err := s.accounts.ApplyPlanTransition(ctx, acc.ID, tr)
	switch {
	case err == nil:
		s.log.InfoContext(ctx, "account downgraded after provider verification", logger.UserID(acc.ID), logger.Provider(string(acc.Provider.Kind)))
		return updated, nil
	case errors.Is(err, entitlement.ErrStaleEvent), errors.Is(err, entitlement.ErrStateMismatch):
		return s.accounts.Get(ctx, acc.ID)
	}
	return nil, err
}
