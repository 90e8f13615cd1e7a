package billing_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/labgrid/handler"
	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/svc/billing"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

func postStripe(h *billing.WebhookHandler, body []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	rec := httptest.NewRecorder()
	h.Stripe(rec, req)
	return rec
}

func postPayPal(h *billing.WebhookHandler, body []byte, signed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", bytes.NewReader(body))
	if signed {
		req.Header.Set("Paypal-Auth-Algo", "SHA256withRSA")
		req.Header.Set("Paypal-Cert-Url", "https://api.paypal.test/cert")
		req.Header.Set("Paypal-Transmission-Id", "tx-1")
		req.Header.Set("Paypal-Transmission-Sig", "sig")
		req.Header.Set("Paypal-Transmission-Time", "2026-07-01T00:00:00Z")
	}
	rec := httptest.NewRecorder()
	h.PayPal(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) handler.JSONResponse {
	t.Helper()
	var body handler.JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func receivedStatus(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	data, ok := decodeBody(t, rec).Data.(map[string]any)
	require.True(t, ok, rec.Body.String())
	assert.Equal(t, true, data["received"])
	status, _ := data["status"].(string)
	return status
}

func TestNewWebhookHandler_PanicsWithoutService(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { billing.NewWebhookHandler(nil, nil, 0) })
}

func TestWebhookHandler_Stripe(t *testing.T) {
	t.Parallel()

	t.Run("accepted event", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		acc := f.signup(t, "hook@lab.test")
		h := billing.NewWebhookHandler(f.svc, logger.Noop(), 0)
		payload := stripePayload(t, "evt_h1", "checkout.session.completed", baseTime(), checkoutSession(acc.ID))

		rec := postStripe(h, payload, sign(payload))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "applied", receivedStatus(t, rec))

		rec = postStripe(h, payload, sign(payload))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "duplicate", receivedStatus(t, rec))
	})

	t.Run("bad signature writes nothing", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		acc := f.signup(t, "badsig@lab.test")
		h := billing.NewWebhookHandler(f.svc, logger.Noop(), 0)
		payload := stripePayload(t, "evt_h2", "checkout.session.completed", baseTime(), checkoutSession(acc.ID))
		sig := sign(payload)

		rec := postStripe(h, bytes.Replace(payload, []byte(`"duration":"3"`), []byte(`"duration":"9"`), 1), sig)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = postStripe(h, payload, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		require.NotNil(t, body.Error)
		assert.Equal(t, "invalid_webhook", body.Error.Code)
		assert.Nil(t, body.Data)

		got := f.get(t, acc.ID)
		assert.Equal(t, entitlement.StateTrial, got.State())
		txs, err := f.accounts.ListTransactions(t.Context(), acc.ID)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})

	t.Run("oversized body", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		h := billing.NewWebhookHandler(f.svc, logger.Noop(), 16)

		rec := postStripe(h, bytes.Repeat([]byte("x"), 64), "t=1,v1=abc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("disabled provider", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, billing.WithStripe(nil, ""))
		h := billing.NewWebhookHandler(f.svc, logger.Noop(), 0)

		rec := postStripe(h, []byte(`{}`), "t=1,v1=abc")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestWebhookHandler_PayPal(t *testing.T) {
	t.Parallel()
	body := []byte(`{"id":"WH-1","event_type":"CUSTOMER.DISPUTE.CREATED","create_time":"2026-07-01T00:00:00Z","resource":{}}`)

	t.Run("verified event is acknowledged", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.paypal.On("VerifyWebhookSignature", mock.Anything, mock.Anything, mock.Anything).Return(true, nil).Once()
		h := billing.NewWebhookHandler(f.svc, logger.Noop(), 0)

		rec := postPayPal(h, body, true)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ignored", receivedStatus(t, rec))
	})

	t.Run("rejected signature", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.paypal.On("VerifyWebhookSignature", mock.Anything, mock.Anything, mock.Anything).Return(false, nil).Once()
		h := billing.NewWebhookHandler(f.svc, logger.Noop(), 0)

		rec := postPayPal(h, body, true)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		require.NotNil(t, decodeBody(t, rec).Error)
		assert.Equal(t, "invalid_signature", decodeBody(t, rec).Error.Code)
	})

	t.Run("missing headers", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		h := billing.NewWebhookHandler(f.svc, logger.Noop(), 0)

		assert.Equal(t, http.StatusForbidden, postPayPal(h, body, false).Code)
		f.paypal.AssertNotCalled(t, "VerifyWebhookSignature", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("verification call failure is not a pass", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.paypal.On("VerifyWebhookSignature", mock.Anything, mock.Anything, mock.Anything).
			Return(false, errors.Join(billing.ErrProviderUnavailable, errors.New("timeout"))).Once()
		h := billing.NewWebhookHandler(f.svc, logger.Noop(), 0)

		assert.Equal(t, http.StatusServiceUnavailable, postPayPal(h, body, true).Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		h := billing.NewWebhookHandler(f.svc, logger.Noop(), 0)

		assert.Equal(t, http.StatusBadRequest, postPayPal(h, []byte(`not json`), true).Code)
	})
}
