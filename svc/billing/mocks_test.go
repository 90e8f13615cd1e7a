package billing_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/labgrid/pkg/idempotency"
	"github.com/dmitrymomot/labgrid/svc/billing"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

type stripeMock struct{ mock.Mock }

func (m *stripeMock) CreateCustomer(ctx context.Context, email, name, userID string) (string, error) {
	args := m.Called(ctx, email, name, userID)
	return args.String(0), args.Error(1)
}

func (m *stripeMock) GetCustomer(ctx context.Context, id string) (*billing.StripeCustomer, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*billing.StripeCustomer)
	return c, args.Error(1)
}

func (m *stripeMock) CreateCheckoutSession(ctx context.Context, p billing.StripeCheckoutParams) (*billing.CheckoutLink, error) {
	args := m.Called(ctx, p)
	l, _ := args.Get(0).(*billing.CheckoutLink)
	return l, args.Error(1)
}

func (m *stripeMock) GetSubscription(ctx context.Context, id string) (*billing.StripeSubscriptionState, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*billing.StripeSubscriptionState)
	return s, args.Error(1)
}

type paypalMock struct{ mock.Mock }

func (m *paypalMock) VerifyWebhookSignature(ctx context.Context, tr billing.PayPalTransmission, event json.RawMessage) (bool, error) {
	args := m.Called(ctx, tr, event)
	return args.Bool(0), args.Error(1)
}

func (m *paypalMock) GetSubscription(ctx context.Context, id string) (*billing.PayPalSubscription, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*billing.PayPalSubscription)
	return s, args.Error(1)
}

func (m *paypalMock) CreateSubscription(ctx context.Context, planID, customID, returnURL, cancelURL string) (*billing.CheckoutLink, error) {
	args := m.Called(ctx, planID, customID, returnURL, cancelURL)
	l, _ := args.Get(0).(*billing.CheckoutLink)
	return l, args.Error(1)
}

func (m *paypalMock) CreateOrder(ctx context.Context, p billing.PayPalOrderParams) (*billing.CheckoutLink, error) {
	args := m.Called(ctx, p)
	l, _ := args.Get(0).(*billing.CheckoutLink)
	return l, args.Error(1)
}

func (m *paypalMock) GetOrder(ctx context.Context, orderID string) (*billing.PayPalOrder, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(*billing.PayPalOrder)
	return o, args.Error(1)
}

func (m *paypalMock) CaptureOrder(ctx context.Context, orderID string) (*billing.PayPalOrder, error) {
	args := m.Called(ctx, orderID)
	c, _ := args.Get(0).(*billing.PayPalOrder)
	return c, args.Error(1)
}

type notifierMock struct{ mock.Mock }

func (m *notifierMock) PaymentFailed(ctx context.Context, acc *entitlement.Account) error {
	return m.Called(ctx, acc.ID).Error(0)
}

// claimSpy records the TTLs the service asks for.
type claimSpy struct {
	idempotency.Store

	mu      sync.Mutex
	claims  []time.Duration
	extends []time.Duration
}

func (c *claimSpy) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	c.claims = append(c.claims, ttl)
	c.mu.Unlock()
	return c.Store.Claim(ctx, key, ttl)
}

func (c *claimSpy) Extend(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	c.extends = append(c.extends, ttl)
	c.mu.Unlock()
	return c.Store.Extend(ctx, key, ttl)
}
