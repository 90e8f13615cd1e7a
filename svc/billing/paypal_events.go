package billing

import (
	"encoding/json"
	"time"
)

// PayPal webhook event types handled by the reconciler.
const (
	paypalSaleCompleted         = "PAYMENT.SALE.COMPLETED"
	paypalSubscriptionActivated = "BILLING.SUBSCRIPTION.ACTIVATED"
	paypalSubscriptionCancelled = "BILLING.SUBSCRIPTION.CANCELLED"
	paypalSubscriptionSuspended = "BILLING.SUBSCRIPTION.SUSPENDED"
	paypalSubscriptionExpired   = "BILLING.SUBSCRIPTION.EXPIRED"
	paypalPaymentFailed         = "BILLING.SUBSCRIPTION.PAYMENT.FAILED"
)

// PayPalEvent is the envelope of a PayPal webhook delivery.
type PayPalEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	CreateTime   time.Time       `json:"create_time"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

type (
	paypalSale struct {
		ID                 string `json:"id"`
		BillingAgreementID string `json:"billing_agreement_id"`
		Custom             string `json:"custom"`
		Amount             struct {
			Total    string `json:"total"`
			Currency string `json:"currency"`
		} `json:"amount"`
	}

	paypalSubscriptionResource struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		PlanID   string `json:"plan_id"`
		CustomID string `json:"custom_id"`
	}
)
