package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/labgrid/modules/billing"
	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/pkg/plan"
	"github.com/dmitrymomot/labgrid/pkg/trial"
	billingsvc "github.com/dmitrymomot/labgrid/svc/billing"
	"github.com/dmitrymomot/labgrid/svc/delegation"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
	"github.com/dmitrymomot/labgrid/svc/entitlement/store/memstore"
)

type checkoutMock struct{ mock.Mock }

func (m *checkoutMock) CreateStripeCheckout(ctx context.Context, userID string, t plan.Type, months int) (*billingsvc.CheckoutLink, error) {
	args := m.Called(ctx, userID, t, months)
	link, _ := args.Get(0).(*billingsvc.CheckoutLink)
	return link, args.Error(1)
}

func (m *checkoutMock) CreatePayPalSubscription(ctx context.Context, userID string, t plan.Type, months int) (*billingsvc.CheckoutLink, error) {
	args := m.Called(ctx, userID, t, months)
	link, _ := args.Get(0).(*billingsvc.CheckoutLink)
	return link, args.Error(1)
}

func (m *checkoutMock) CreatePayPalOrder(ctx context.Context, userID string, t plan.Type, months int) (*billingsvc.CheckoutLink, error) {
	args := m.Called(ctx, userID, t, months)
	link, _ := args.Get(0).(*billingsvc.CheckoutLink)
	return link, args.Error(1)
}

func (m *checkoutMock) CapturePayPalOrder(ctx context.Context, userID, orderID string) (*entitlement.Account, error) {
	args := m.Called(ctx, userID, orderID)
	acc, _ := args.Get(0).(*entitlement.Account)
	return acc, args.Error(1)
}

type fixture struct {
	router   http.Handler
	checkout *checkoutMock
	main     *entitlement.Account
	tech     *entitlement.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	accounts := entitlement.NewService(memstore.New(),
		entitlement.WithClock(trial.New(30*24*time.Hour, trial.WithNow(func() time.Time { return now }))),
		entitlement.WithLogger(logger.Noop()),
	)
	ctx := context.Background()
	main, err := accounts.Signup(ctx, entitlement.SignupParams{Email: "main@lab.test", Name: "Main", Password: "correct-horse"})
	require.NoError(t, err)
	tech, err := accounts.CreateSecondary(ctx, main.ID, entitlement.SignupParams{Email: "tech@lab.test", Name: "Tech", Password: "correct-horse"})
	require.NoError(t, err)

	checkout := &checkoutMock{}
	session := func(r *http.Request) (string, bool) { return main.ID, true }

	r := chi.NewRouter()
	r.Use(delegation.Middleware(delegation.NewResolver(accounts), session, logger.Noop()))
	r.Mount("/api/billing", billing.NewHandler(checkout, accounts).Handle())
	return &fixture{router: r, checkout: checkout, main: main, tech: tech}
}

func (f *fixture) post(path, active string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if active != "" {
		req.Header.Set(delegation.HeaderActiveUser, active)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCheckoutRoutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   string
		method string
	}{
		{"stripe", "/api/billing/stripe/checkout", "CreateStripeCheckout"},
		{"paypal subscription", "/api/billing/paypal/subscriptions", "CreatePayPalSubscription"},
		{"paypal order", "/api/billing/paypal/orders", "CreatePayPalOrder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.checkout.On(tt.method, mock.Anything, f.main.ID, plan.Standard, 6).
				Return(&billingsvc.CheckoutLink{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil).Once()

			rec := f.post(tt.path, f.tech.ID, map[string]any{"planType": "standard", "months": 6})
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			assert.JSONEq(t, `{"data":{"id":"cs_1","url":"https://pay.example/cs_1"}}`, rec.Body.String())
			f.checkout.AssertExpectations(t)
		})
	}
}

func TestCheckout_Errors(t *testing.T) {
	t.Parallel()

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := f.post("/api/billing/stripe/checkout", "", map[string]any{"planType": "gold"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		f.checkout.AssertNotCalled(t, "CreateStripeCheckout")
	})

	t.Run("provider unavailable", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.checkout.On("CreatePayPalOrder", mock.Anything, f.main.ID, plan.Premium, 0).
			Return(nil, billingsvc.ErrProviderUnavailable).Once()

		rec := f.post("/api/billing/paypal/orders", "", map[string]any{"planType": "premium"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotContains(t, rec.Body.String(), "try again later", "5xx messages are generic")
	})
}

func TestCaptureOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.checkout.On("CapturePayPalOrder", mock.Anything, f.main.ID, "ORDER-9").
		Return(&entitlement.Account{ID: f.main.ID, PlanType: plan.Premium}, nil).Once()

	rec := f.post("/api/billing/paypal/orders/ORDER-9/capture", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"planType":"premium"`)
	f.checkout.AssertExpectations(t)
}

func TestListTransactions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/billing/transactions", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}
