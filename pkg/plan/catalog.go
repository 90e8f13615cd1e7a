package plan

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultDurationMonths is used when a checkout does not say how long it buys.
const DefaultDurationMonths = 3

// Offer is a purchasable {plan, duration} pair.
type Offer struct {
	Plan   Type
	Months int
}

func (o Offer) String() string {
	return fmt.Sprintf("%s/%dm", o.Plan, o.Months)
}

// Price is a one-time amount for an offer.
type Price struct {
	Amount   decimal.Decimal
	Currency string
}

// Catalog maps offers to provider identifiers.
// Built once at startup and read-only afterwards.
type Catalog struct {
	stripe       map[Offer]string
	paypal       map[Offer]string
	paypalOffers map[string]Offer
	orders       map[Offer]Price
}

type catalogFile struct {
	Stripe []struct {
		Plan    string `yaml:"plan"`
		Months  int    `yaml:"months"`
		PriceID string `yaml:"price_id"`
	} `yaml:"stripe"`
	PayPal []struct {
		Plan   string `yaml:"plan"`
		Months int    `yaml:"months"`
		PlanID string `yaml:"plan_id"`
	} `yaml:"paypal"`
	PayPalOrders []struct {
		Plan     string `yaml:"plan"`
		Months   int    `yaml:"months"`
		Amount   string `yaml:"amount"`
		Currency string `yaml:"currency"`
	} `yaml:"paypal_orders"`
}

// LoadCatalog decodes a YAML catalog:
//
//	stripe:
//	  - {plan: standard, months: 12, price_id: price_123}
//	paypal:
//	  - {plan: premium, months: 1, plan_id: P-5ML4271244454362WXNWU5NQ}
//	paypal_orders:
//	  - {plan: standard, months: 3, amount: "29.90", currency: EUR}
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var f catalogFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}

	c := NewCatalog()
	for _, e := range f.Stripe {
		o, err := newOffer(e.Plan, e.Months)
		if err != nil {
			return nil, errors.Join(ErrInvalidCatalog, err)
		}
		if err := c.AddStripePrice(o, e.PriceID); err != nil {
			return nil, err
		}
	}
	for _, e := range f.PayPal {
		o, err := newOffer(e.Plan, e.Months)
		if err != nil {
			return nil, errors.Join(ErrInvalidCatalog, err)
		}
		if err := c.AddPayPalPlan(o, e.PlanID); err != nil {
			return nil, err
		}
	}
	for _, e := range f.PayPalOrders {
		o, err := newOffer(e.Plan, e.Months)
		if err != nil {
			return nil, errors.Join(ErrInvalidCatalog, err)
		}
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil || !amount.IsPositive() || e.Currency == "" {
			return nil, fmt.Errorf("%w: order price for %s", ErrInvalidCatalog, o)
		}
		c.orders[o] = Price{Amount: amount, Currency: e.Currency}
	}
	return c, nil
}

// LoadCatalogFile reads a catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		stripe:       make(map[Offer]string),
		paypal:       make(map[Offer]string),
		paypalOffers: make(map[string]Offer),
		orders:       make(map[Offer]Price),
	}
}

// AddStripePrice registers the Stripe price id sold for o.
func (c *Catalog) AddStripePrice(o Offer, priceID string) error {
	if priceID == "" {
		return fmt.Errorf("%w: empty stripe price id for %s", ErrInvalidCatalog, o)
	}
	c.stripe[o] = priceID
	return nil
}

// AddPayPalPlan registers the PayPal plan id sold for o.
// A plan id belongs to exactly one offer.
func (c *Catalog) AddPayPalPlan(o Offer, planID string) error {
	if planID == "" {
		return fmt.Errorf("%w: empty paypal plan id for %s", ErrInvalidCatalog, o)
	}
	if prev, ok := c.paypalOffers[planID]; ok && prev != o {
		return fmt.Errorf("%w: paypal plan id %s mapped to both %s and %s", ErrInvalidCatalog, planID, prev, o)
	}
	c.paypal[o] = planID
	c.paypalOffers[planID] = o
	return nil
}

// AddOrderPrice registers a one-time PayPal order price for o.
func (c *Catalog) AddOrderPrice(o Offer, p Price) {
	c.orders[o] = p
}

// StripePrice returns the Stripe price id for {t, months}.
func (c *Catalog) StripePrice(t Type, months int) (string, error) {
	o, err := offer(t, months)
	if err != nil {
		return "", err
	}
	id, ok := c.stripe[o]
	if !ok {
		return "", fmt.Errorf("%w: stripe %s", ErrNoPrice, o)
	}
	return id, nil
}

// PayPalPlan returns the PayPal plan id for {t, months}.
func (c *Catalog) PayPalPlan(t Type, months int) (string, error) {
	o, err := offer(t, months)
	if err != nil {
		return "", err
	}
	id, ok := c.paypal[o]
	if !ok {
		return "", fmt.Errorf("%w: paypal %s", ErrNoPrice, o)
	}
	return id, nil
}

// OrderPrice returns the one-time PayPal price for {t, months}.
func (c *Catalog) OrderPrice(t Type, months int) (Price, error) {
	o, err := offer(t, months)
	if err != nil {
		return Price{}, err
	}
	p, ok := c.orders[o]
	if !ok {
		return Price{}, fmt.Errorf("%w: paypal order %s", ErrNoPrice, o)
	}
	return p, nil
}

// ResolvePayPalPlan inverts the PayPal table.
func (c *Catalog) ResolvePayPalPlan(planID string) (Offer, error) {
	o, ok := c.paypalOffers[planID]
	if !ok {
		return Offer{}, fmt.Errorf("%w: %q", ErrUnknownProviderID, planID)
	}
	return o, nil
}

func newOffer(planType string, months int) (Offer, error) {
	t, err := Parse(planType)
	if err != nil {
		return Offer{}, err
	}
	return offer(t, months)
}

func offer(t Type, months int) (Offer, error) {
	if !t.Valid() {
		return Offer{}, fmt.Errorf("%w: %q", ErrUnknownPlan, t)
	}
	if months <= 0 {
		return Offer{}, fmt.Errorf("%w: %d months", ErrInvalidDuration, months)
	}
	return Offer{Plan: t, Months: months}, nil
}
