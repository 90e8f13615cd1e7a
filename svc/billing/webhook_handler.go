package billing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/labgrid/handler"
	"github.com/dmitrymomot/labgrid/pkg/logger"
	"github.com/dmitrymomot/labgrid/pkg/metrics"
)

const defaultWebhookBodyLimit = 1 << 20

// WebhookHandler exposes the provider webhook endpoints.
//
// Response policy: authenticity and parse failures are rejected with 4xx,
// a failed PayPal verification call or a disabled provider with 503,
// transient processing failures with 500 so the provider retries,
// and everything else (applied, duplicate, ignored, stale, unresolved) with 200.
type WebhookHandler struct {
	svc       Service
	log       *slog.Logger
	bodyLimit int64
}

// NewWebhookHandler creates the webhook endpoints. bodyLimit <= 0 means 1 MiB.
func NewWebhookHandler(svc Service, log *slog.Logger, bodyLimit int64) *WebhookHandler {
	if svc == nil {
		panic("billing: service is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if bodyLimit <= 0 {
		bodyLimit = defaultWebhookBodyLimit
	}
	return &WebhookHandler{svc: svc, log: log.With(logger.Component("billing.webhook")), bodyLimit: bodyLimit}
}

// Stripe handles POST /webhooks/stripe.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() { observe(ProviderStripe, eventType, status, start) }()

	payload, ok := h.readBody(w, r)
	if !ok {
		status = http.StatusBadRequest
		writeError(w, r, handler.HTTPError{Code: status, Key: "unreadable_body"})
		return
	}

	ev, err := h.svc.VerifyStripeEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		status = h.rejectStatus(r, ProviderStripe, err, http.StatusBadRequest)
		writeError(w, r, rejectError(status))
		return
	}
	eventType = string(ev.Type)

	out, err := h.svc.HandleStripeEvent(r.Context(), ev, payload)
	if err != nil {
		status = http.StatusInternalServerError
		writeError(w, r, handler.HTTPError{Code: status, Key: "processing_failed"})
		return
	}
	writeReceived(w, r, out)
}

// PayPal handles POST /webhooks/paypal.
func (h *WebhookHandler) PayPal(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() { observe(ProviderPayPal, eventType, status, start) }()

	payload, ok := h.readBody(w, r)
	if !ok {
		status = http.StatusBadRequest
		writeError(w, r, handler.HTTPError{Code: status, Key: "unreadable_body"})
		return
	}

	ev, err := h.svc.VerifyPayPalEvent(r.Context(), TransmissionFromHeader(r.Header), payload)
	if err != nil {
		status = h.rejectStatus(r, ProviderPayPal, err, http.StatusForbidden)
		writeError(w, r, rejectError(status))
		return
	}
	eventType = ev.EventType

	out, err := h.svc.HandlePayPalEvent(r.Context(), ev, payload)
	if err != nil {
		status = http.StatusInternalServerError
		writeError(w, r, handler.HTTPError{Code: status, Key: "processing_failed"})
		return
	}
	writeReceived(w, r, out)
}

func (h *WebhookHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.bodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.WarnContext(r.Context(), "failed to read webhook body", logger.Error(err))
		return nil, false
	}
	return payload, true
}

// rejectStatus maps a verification error onto a response code.
func (h *WebhookHandler) rejectStatus(r *http.Request, provider string, err error, invalid int) int {
	status := invalid
	switch {
	case errors.Is(err, ErrProviderDisabled), errors.Is(err, ErrVerificationFailed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ErrMalformedEvent):
		status = http.StatusBadRequest
	}
	h.log.WarnContext(r.Context(), "webhook rejected",
		logger.Provider(provider),
		slog.Int("status", status),
		logger.Error(err),
	)
	return status
}

func rejectError(status int) handler.HTTPError {
	switch status {
	case http.StatusServiceUnavailable:
		return handler.HTTPError{Code: status, Key: "verification_unavailable"}
	case http.StatusBadRequest:
		return handler.HTTPError{Code: status, Key: "invalid_webhook"}
	}
	return handler.HTTPError{Code: status, Key: "invalid_signature"}
}

func observe(provider, eventType string, status int, start time.Time) {
	metrics.WebhookRequestsTotal.WithLabelValues(provider, eventType, http.StatusText(status)).Inc()
	metrics.WebhookDuration.WithLabelValues(provider, eventType).Observe(time.Since(start).Seconds())
}

func writeReceived(w http.ResponseWriter, r *http.Request, out Outcome) {
	_ = handler.JSON(map[string]any{"received": true, "status": out}).Render(w, r)
}

func writeError(w http.ResponseWriter, r *http.Request, err handler.HTTPError) {
	_ = handler.JSONError(err).Render(w, r)
}
