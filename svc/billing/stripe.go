package billing

import (
	"context"
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Stripe subscription statuses that no longer grant access.
var stripeEndedStatuses = map[string]bool{
	string(stripe.SubscriptionStatusCanceled):          true,
	string(stripe.SubscriptionStatusIncompleteExpired): true,
	string(stripe.SubscriptionStatusUnpaid):            true,
}

// StripeCustomer is the subset of a Stripe customer the reconciler reads.
type StripeCustomer struct {
	ID       string
	Email    string
	Metadata map[string]string
}

// StripeSubscriptionState is the live state of a Stripe subscription.
type StripeSubscriptionState struct {
	ID       string
	Customer string
	Status   string
}

// Active reports whether the subscription still grants access.
func (s StripeSubscriptionState) Active() bool {
	return !stripeEndedStatuses[s.Status]
}

// StripeCheckoutParams describes a hosted checkout session.
type StripeCheckoutParams struct {
	CustomerID string
	UserID     string
	PriceID    string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// CheckoutLink is where the user is sent to complete a purchase.
type CheckoutLink struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// StripeClient is the narrow Stripe API surface used by billing.
type StripeClient interface {
	CreateCustomer(ctx context.Context, email, name, userID string) (string, error)
	GetCustomer(ctx context.Context, id string) (*StripeCustomer, error)
	CreateCheckoutSession(ctx context.Context, p StripeCheckoutParams) (*CheckoutLink, error)
	GetSubscription(ctx context.Context, id string) (*StripeSubscriptionState, error)
}

type stripeAPI struct {
	sc *client.API
}

// NewStripeClient wraps the official Stripe SDK.
func NewStripeClient(secretKey string) StripeClient {
	return &stripeAPI{sc: client.New(secretKey, nil)}
}

func (a *stripeAPI) CreateCustomer(ctx context.Context, email, name, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata(metaUserID, userID)

	c, err := a.sc.Customers.New(params)
	if err != nil {
		return "", stripeError(err)
	}
	return c.ID, nil
}

func (a *stripeAPI) GetCustomer(ctx context.Context, id string) (*StripeCustomer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	c, err := a.sc.Customers.Get(id, params)
	if err != nil {
		return nil, stripeError(err)
	}
	return &StripeCustomer{ID: c.ID, Email: c.Email, Metadata: c.Metadata}, nil
}

func (a *stripeAPI) CreateCheckoutSession(ctx context.Context, p StripeCheckoutParams) (*CheckoutLink, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(p.UserID),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: p.Metadata,
		},
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := a.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, stripeError(err)
	}
	return &CheckoutLink{ID: s.ID, URL: s.URL}, nil
}

func (a *stripeAPI) GetSubscription(ctx context.Context, id string) (*StripeSubscriptionState, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	s, err := a.sc.Subscriptions.Get(id, params)
	if err != nil {
		return nil, stripeError(err)
	}
	st := &StripeSubscriptionState{ID: s.ID, Status: string(s.Status)}
	if s.Customer != nil {
		st.Customer = s.Customer.ID
	}
	return st, nil
}

// stripeError separates missing resources from provider outages.
func stripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
		return errors.Join(ErrProviderNotFound, err)
	}
	return errors.Join(ErrProviderUnavailable, err)
}
