package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/dmitrymomot/labgrid/pkg/plan"
)

// PayPal subscription statuses.
const (
	PayPalStatusActive    = "ACTIVE"
	PayPalStatusCancelled = "CANCELLED"
	PayPalStatusSuspended = "SUSPENDED"
	PayPalStatusExpired   = "EXPIRED"
	PayPalStatusCompleted = "COMPLETED"
)

// PayPalTransmission carries the signature headers of a PayPal webhook delivery.
type PayPalTransmission struct {
	AuthAlgo         string `json:"auth_algo"`
	CertURL          string `json:"cert_url"`
	TransmissionID   string `json:"transmission_id"`
	TransmissionSig  string `json:"transmission_sig"`
	TransmissionTime string `json:"transmission_time"`
}

// TransmissionFromHeader reads the PayPal signature headers.
func TransmissionFromHeader(h http.Header) PayPalTransmission {
	return PayPalTransmission{
		AuthAlgo:         h.Get("Paypal-Auth-Algo"),
		CertURL:          h.Get("Paypal-Cert-Url"),
		TransmissionID:   h.Get("Paypal-Transmission-Id"),
		TransmissionSig:  h.Get("Paypal-Transmission-Sig"),
		TransmissionTime: h.Get("Paypal-Transmission-Time"),
	}
}

// Complete reports whether every signature header is present.
func (t PayPalTransmission) Complete() bool {
	return t.AuthAlgo != "" && t.CertURL != "" && t.TransmissionID != "" &&
		t.TransmissionSig != "" && t.TransmissionTime != ""
}

// PayPalSubscription is the live state of a PayPal subscription.
type PayPalSubscription struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	PlanID      string `json:"plan_id"`
	CustomID    string `json:"custom_id"`
	BillingInfo struct {
		NextBillingTime *time.Time `json:"next_billing_time,omitempty"`
	} `json:"billing_info"`
}

// Active reports whether the subscription still grants access.
func (s PayPalSubscription) Active() bool {
	return s.Status == PayPalStatusActive
}

// PayPalOrder is a one-time order as seen by PayPal. Amount and At are
// only set once the order has been captured.
type PayPalOrder struct {
	OrderID  string
	Status   string
	CustomID string
	Amount   decimal.Decimal
	Currency string
	At       time.Time
}

// PayPalOrderParams describes a one-time order.
type PayPalOrderParams struct {
	CustomID    string
	Description string
	Price       plan.Price
	ReturnURL   string
	CancelURL   string
}

// PayPalClient is the narrow PayPal REST surface used by billing.
type PayPalClient interface {
	VerifyWebhookSignature(ctx context.Context, tr PayPalTransmission, event json.RawMessage) (bool, error)
	GetSubscription(ctx context.Context, id string) (*PayPalSubscription, error)
	CreateSubscription(ctx context.Context, planID, customID, returnURL, cancelURL string) (*CheckoutLink, error)
	CreateOrder(ctx context.Context, p PayPalOrderParams) (*CheckoutLink, error)
	GetOrder(ctx context.Context, orderID string) (*PayPalOrder, error)
	CaptureOrder(ctx context.Context, orderID string) (*PayPalOrder, error)
}

type paypalAPI struct {
	baseURL   string
	webhookID string
	http      *http.Client
}

// NewPayPalClient builds a REST client authenticated with OAuth2 client credentials.
// The token is cached and refreshed by the oauth2 transport.
func NewPayPalClient(cfg Config) PayPalClient {
	base := strings.TrimRight(cfg.PayPalBaseURL, "/")
	cc := clientcredentials.Config{
		ClientID:     cfg.PayPalClientID,
		ClientSecret: cfg.PayPalClientSecret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.ProviderTimeout})
	hc := cc.Client(tokenCtx)
	hc.Timeout = cfg.ProviderTimeout

	return &paypalAPI{baseURL: base, webhookID: cfg.PayPalWebhookID, http: hc}
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalAppContext struct {
	ReturnURL  string `json:"return_url"`
	CancelURL  string `json:"cancel_url"`
	UserAction string `json:"user_action,omitempty"`
}

type paypalErrorBody struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue string `json:"issue"`
	} `json:"details"`
}

func (e paypalErrorBody) hasIssue(issue string) bool {
	for _, d := range e.Details {
		if d.Issue == issue {
			return true
		}
	}
	return false
}

func (a *paypalAPI) VerifyWebhookSignature(ctx context.Context, tr PayPalTransmission, event json.RawMessage) (bool, error) {
	req := struct {
		PayPalTransmission
		WebhookID    string          `json:"webhook_id"`
		WebhookEvent json.RawMessage `json:"webhook_event"`
	}{tr, a.webhookID, event}

	var resp struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := a.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", req, &resp); err != nil {
		return false, err
	}
	return resp.VerificationStatus == "SUCCESS", nil
}

func (a *paypalAPI) GetSubscription(ctx context.Context, id string) (*PayPalSubscription, error) {
	var sub PayPalSubscription
	if err := a.do(ctx, http.MethodGet, "/v1/billing/subscriptions/"+url.PathEscape(id), nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (a *paypalAPI) CreateSubscription(ctx context.Context, planID, customID, returnURL, cancelURL string) (*CheckoutLink, error) {
	req := struct {
		PlanID     string           `json:"plan_id"`
		CustomID   string           `json:"custom_id"`
		AppContext paypalAppContext `json:"application_context"`
	}{
		PlanID:     planID,
		CustomID:   customID,
		AppContext: paypalAppContext{ReturnURL: returnURL, CancelURL: cancelURL, UserAction: "SUBSCRIBE_NOW"},
	}

	var resp struct {
		ID    string       `json:"id"`
		Links []paypalLink `json:"links"`
	}
	if err := a.do(ctx, http.MethodPost, "/v1/billing/subscriptions", req, &resp); err != nil {
		return nil, err
	}
	return approvalLink(resp.ID, resp.Links)
}

func (a *paypalAPI) CreateOrder(ctx context.Context, p PayPalOrderParams) (*CheckoutLink, error) {
	type unit struct {
		CustomID    string       `json:"custom_id"`
		Description string       `json:"description,omitempty"`
		Amount      paypalAmount `json:"amount"`
	}
	req := struct {
		Intent     string           `json:"intent"`
		Units      []unit           `json:"purchase_units"`
		AppContext paypalAppContext `json:"application_context"`
	}{
		Intent: "CAPTURE",
		Units: []unit{{
			CustomID:    p.CustomID,
			Description: p.Description,
			Amount:      paypalAmount{CurrencyCode: p.Price.Currency, Value: p.Price.Amount.StringFixed(2)},
		}},
		AppContext: paypalAppContext{ReturnURL: p.ReturnURL, CancelURL: p.CancelURL, UserAction: "PAY_NOW"},
	}

	var resp struct {
		ID    string       `json:"id"`
		Links []paypalLink `json:"links"`
	}
	if err := a.do(ctx, http.MethodPost, "/v2/checkout/orders", req, &resp); err != nil {
		return nil, err
	}
	return approvalLink(resp.ID, resp.Links)
}

// paypalOrderBody is the order resource returned by both GET and capture.
type paypalOrderBody struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Units  []struct {
		CustomID string `json:"custom_id"`
		Payments struct {
			Captures []struct {
				Status     string       `json:"status"`
				CustomID   string       `json:"custom_id"`
				Amount     paypalAmount `json:"amount"`
				CreateTime time.Time    `json:"create_time"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (b paypalOrderBody) order() *PayPalOrder {
	o := &PayPalOrder{OrderID: b.ID, Status: b.Status}
	for _, u := range b.Units {
		if o.CustomID == "" {
			o.CustomID = u.CustomID
		}
		for _, cp := range u.Payments.Captures {
			if o.CustomID == "" {
				o.CustomID = cp.CustomID
			}
			if amt, err := decimal.NewFromString(cp.Amount.Value); err == nil {
				o.Amount = o.Amount.Add(amt)
				o.Currency = cp.Amount.CurrencyCode
			}
			if o.At.IsZero() {
				o.At = cp.CreateTime
			}
		}
	}
	return o
}

func (a *paypalAPI) GetOrder(ctx context.Context, orderID string) (*PayPalOrder, error) {
	var resp paypalOrderBody
	if err := a.do(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(orderID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.order(), nil
}

func (a *paypalAPI) CaptureOrder(ctx context.Context, orderID string) (*PayPalOrder, error) {
	var resp paypalOrderBody
	err := a.do(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", struct{}{}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.order(), nil
}

func approvalLink(id string, links []paypalLink) (*CheckoutLink, error) {
	for _, l := range links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return &CheckoutLink{ID: id, URL: l.Href}, nil
		}
	}
	return nil, errors.Join(ErrProviderUnavailable, fmt.Errorf("paypal response for %s has no approval link", id))
}

// do sends a JSON request. 404 maps to ErrProviderNotFound, other failures to ErrProviderUnavailable.
func (a *paypalAPI) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("paypal: encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("paypal: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return errors.Join(ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Join(ErrProviderUnavailable, err)
	}

	if resp.StatusCode >= 300 {
		var pe paypalErrorBody
		_ = json.Unmarshal(raw, &pe)
		cause := fmt.Errorf("paypal: %s %s: status %d: %s %s", method, path, resp.StatusCode, pe.Name, pe.Message)
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return errors.Join(ErrProviderNotFound, cause)
		case resp.StatusCode == http.StatusUnprocessableEntity && pe.hasIssue("ORDER_ALREADY_CAPTURED"):
			return errors.Join(ErrOrderAlreadyCaptured, cause)
		default:
			return errors.Join(ErrProviderUnavailable, cause)
		}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Join(ErrProviderUnavailable, fmt.Errorf("paypal: decode response: %w", err))
	}
	return nil
}
