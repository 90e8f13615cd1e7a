package entitlement

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/labgrid/pkg/plan"
)

// ProviderKind discriminates the billing reference attached to an account.
type ProviderKind string

const (
	ProviderNone        ProviderKind = ""
	ProviderStripe      ProviderKind = "stripe"
	ProviderPayPal      ProviderKind = "paypal"
	ProviderPayPalOrder ProviderKind = "paypal_order"
)

// ProviderRef is the single billing reference an account may carry.
// Holding one value instead of a column per provider makes
// "one active provider at a time" a structural property.
type ProviderRef struct {
	Kind ProviderKind `json:"kind,omitempty" bson:"kind,omitempty"`
	ID   string       `json:"id,omitempty" bson:"id,omitempty"`
}

func StripeRef(subscriptionID string) ProviderRef {
	return ProviderRef{Kind: ProviderStripe, ID: subscriptionID}
}

func PayPalRef(subscriptionID string) ProviderRef {
	return ProviderRef{Kind: ProviderPayPal, ID: subscriptionID}
}

func PayPalOrderRef(orderID string) ProviderRef {
	return ProviderRef{Kind: ProviderPayPalOrder, ID: orderID}
}

// IsZero reports whether no provider is attached.
func (r ProviderRef) IsZero() bool { return r.Kind == ProviderNone }

// Account is the per-user entitlement record.
type Account struct {
	ID           string `json:"id" bson:"_id"`
	Email        string `json:"email" bson:"email"`
	Name         string `json:"name" bson:"name"`
	PasswordHash string `json:"-" bson:"passwordHash"`

	PlanType      plan.Type  `json:"planType" bson:"planType"`
	PlanStartDate time.Time  `json:"planStartDate" bson:"planStartDate"`
	PlanEndDate   *time.Time `json:"planEndDate,omitempty" bson:"planEndDate,omitempty"`
	TrialEndsAt   *time.Time `json:"trialEndsAt,omitempty" bson:"trialEndsAt,omitempty"`

	IsMainUser bool   `json:"isMainUser" bson:"isMainUser"`
	MainUserID string `json:"mainUserId,omitempty" bson:"mainUserId,omitempty"`

	StripeCustomerID string      `json:"stripeCustomerId,omitempty" bson:"stripeCustomerId,omitempty"`
	Provider         ProviderRef `json:"provider" bson:"provider"`

	MaxGrids    int  `json:"maxGrids" bson:"maxGrids"`
	MaxTubes    int  `json:"maxTubes" bson:"maxTubes"`
	IsUnlimited bool `json:"isUnlimited" bson:"isUnlimited"`

	LastPaymentFailed bool       `json:"lastPaymentFailed" bson:"lastPaymentFailed"`
	LastReconciledAt  *time.Time `json:"lastReconciledAt,omitempty" bson:"lastReconciledAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Limits returns the cached quota.
func (a *Account) Limits() plan.Limits {
	return plan.Limits{MaxGrids: a.MaxGrids, MaxTubes: a.MaxTubes, IsUnlimited: a.IsUnlimited}
}

// LimitsConsistent reports whether the cached quota matches the catalog for PlanType.
func (a *Account) LimitsConsistent() bool {
	return a.Limits() == plan.LimitsFor(a.PlanType)
}

func (a *Account) setPlan(t plan.Type) {
	l := plan.LimitsFor(t)
	a.PlanType = t
	a.MaxGrids, a.MaxTubes, a.IsUnlimited = l.MaxGrids, l.MaxTubes, l.IsUnlimited
}

// State derives the plan state from the plan type and the provider reference.
func (a *Account) State() State {
	return StateOf(a.PlanType, a.Provider.Kind)
}

// StripeSubscriptionID returns the Stripe subscription id, if Stripe bills this account.
func (a *Account) StripeSubscriptionID() string {
	if a.Provider.Kind == ProviderStripe {
		return a.Provider.ID
	}
	return ""
}

// PayPalSubscriptionID returns the PayPal subscription id, if PayPal bills this account.
func (a *Account) PayPalSubscriptionID() string {
	if a.Provider.Kind == ProviderPayPal {
		return a.Provider.ID
	}
	return ""
}

// FamilyID is the id of the main account this account belongs to.
func (a *Account) FamilyID() string {
	if a.IsMainUser || a.MainUserID == "" {
		return a.ID
	}
	return a.MainUserID
}

// CheckPassword compares pw against the stored bcrypt hash.
func (a *Account) CheckPassword(pw string) bool {
	if a.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(pw)) == nil
}

// HashPassword returns a bcrypt hash of pw.
func HashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
