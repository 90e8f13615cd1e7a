package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Stripe webhook event types handled by the reconciler.
const (
	stripeCheckoutCompleted    = "checkout.session.completed"
	stripeSubscriptionUpdated  = "customer.subscription.updated"
	stripeSubscriptionDeleted  = "customer.subscription.deleted"
	stripeInvoicePaymentFailed = "invoice.payment_failed"
)

// stripeGrantingStatuses are the subscription statuses that keep a paid plan.
var stripeGrantingStatuses = map[string]bool{
	"active":   true,
	"trialing": true,
	"past_due": true,
}

// Metadata keys written on checkout sessions and subscriptions.
const (
	metaUserID   = "userId"
	metaPlanType = "planType"
	metaDuration = "duration"
)

// Minimal payloads decoded from event.Data.Raw. Only the fields used are declared.
type (
	stripeCheckoutSession struct {
		ID                string            `json:"id"`
		Mode              string            `json:"mode"`
		Customer          string            `json:"customer"`
		Subscription      string            `json:"subscription"`
		ClientReferenceID string            `json:"client_reference_id"`
		CustomerEmail     string            `json:"customer_email"`
		AmountTotal       int64             `json:"amount_total"`
		Currency          string            `json:"currency"`
		PaymentStatus     string            `json:"payment_status"`
		Metadata          map[string]string `json:"metadata"`
		CustomerDetails   *struct {
			Email string `json:"email"`
		} `json:"customer_details"`
	}

	stripeSubscription struct {
		ID                 string            `json:"id"`
		Customer           string            `json:"customer"`
		Status             string            `json:"status"`
		CurrentPeriodStart int64             `json:"current_period_start"`
		CurrentPeriodEnd   int64             `json:"current_period_end"`
		Metadata           map[string]string `json:"metadata"`
		Items              struct {
			Data []struct {
				CurrentPeriodStart int64 `json:"current_period_start"`
				CurrentPeriodEnd   int64 `json:"current_period_end"`
			} `json:"data"`
		} `json:"items"`
	}

	stripeInvoice struct {
		ID           string `json:"id"`
		Customer     string `json:"customer"`
		Subscription string `json:"subscription"`
	}
)

func (s stripeCheckoutSession) email() string {
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		return s.CustomerDetails.Email
	}
	return s.CustomerEmail
}

// period returns the current billing period. Newer API versions moved it onto the items.
func (s stripeSubscription) period() (start, end int64) {
	start, end = s.CurrentPeriodStart, s.CurrentPeriodEnd
	if len(s.Items.Data) > 0 {
		if start == 0 {
			start = s.Items.Data[0].CurrentPeriodStart
		}
		if end == 0 {
			end = s.Items.Data[0].CurrentPeriodEnd
		}
	}
	return start, end
}

var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// fromMinorUnits converts a Stripe integer amount into a decimal in major units.
func fromMinorUnits(amount int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}
