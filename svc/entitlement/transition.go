package entitlement

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/labgrid/pkg/apperr"
	"github.com/dmitrymomot/labgrid/pkg/plan"
)

// Transition describes one plan change caused by Event.
type Transition struct {
	Event Event
	Plan  plan.Type

	// PeriodStart zero keeps the current plan start.
	PeriodStart time.Time
	PeriodEnd   *time.Time

	// Provider is written only when ProviderConfirmed is set.
	// A confirmed zero ref detaches the provider.
	Provider          ProviderRef
	ProviderConfirmed bool

	// EventAt orders transitions. Older events than the last applied one are rejected.
	EventAt time.Time

	// Local marks a transition decided on this service's clock (trial sweep,
	// live verification). It is neither ordered against nor recorded as a
	// provider event time, so a delayed provider event can still apply after it.
	Local bool

	// From narrows the states the event may fire from.
	From []State

	Record *Payment
}

// Payment is the billing data recorded with a transition.
type Payment struct {
	Amount   decimal.Decimal
	Currency string
	EventID  string
	Metadata map[string]string
}

// Activate builds an upgrade transition to t for the given period.
func Activate(ev Event, t plan.Type, start time.Time, end *time.Time, ref ProviderRef, at time.Time) Transition {
	return Transition{
		Event:             ev,
		Plan:              t,
		PeriodStart:       start,
		PeriodEnd:         end,
		Provider:          ref,
		ProviderConfirmed: true,
		EventAt:           at,
	}
}

// Downgrade builds a transition to the free plan ending at `at` and detaching the provider.
func Downgrade(ev Event, at time.Time) Transition {
	end := at
	return Transition{
		Event:             ev,
		Plan:              plan.Free,
		PeriodEnd:         &end,
		ProviderConfirmed: true,
		EventAt:           at,
	}
}

// Expire builds a local downgrade to the free plan at `at`.
func Expire(ev Event, at time.Time) Transition {
	t := Downgrade(ev, at)
	t.Local = true
	return t
}

// WithPayment attaches a payment record to the transition.
func (t Transition) WithPayment(p Payment) Transition {
	t.Record = &p
	return t
}

// Validate checks that the transition is internally consistent.
func (t Transition) Validate() error {
	if !t.Event.Valid() {
		return apperr.Invalidf("unknown plan event %q", t.Event)
	}
	if !t.Plan.Valid() {
		return apperr.Invalidf("unknown plan type %q", t.Plan)
	}
	if t.EventAt.IsZero() {
		return apperr.Invalidf("plan event %q has no timestamp", t.Event)
	}
	if t.Event.Downgrades() && t.Plan != plan.Free {
		return apperr.Invalidf("event %q must downgrade to %s", t.Event, plan.Free)
	}
	if t.Record != nil && t.ProviderConfirmed && t.Provider.IsZero() {
		return apperr.Invalidf("payment recorded without a provider reference")
	}
	for _, st := range t.From {
		if !t.Event.Permits(st) {
			return apperr.Invalidf("event %q cannot fire from %s", t.Event, st)
		}
	}
	return nil
}

// Update is the single conditional write a store performs for a transition.
type Update struct {
	Plan        plan.Type
	Limits      plan.Limits
	PeriodStart *time.Time
	PeriodEnd   *time.Time

	SetProvider bool
	Provider    ProviderRef

	ReconciledAt time.Time

	// Local writes skip the ordering check and leave LastReconciledAt unchanged.
	Local bool

	// From restricts the write to accounts currently in one of these states. Empty means any.
	From []State
}

func (t Transition) update() Update {
	u := Update{
		Plan:         t.Plan,
		Limits:       plan.LimitsFor(t.Plan),
		PeriodEnd:    t.PeriodEnd,
		SetProvider:  t.ProviderConfirmed,
		Provider:     t.Provider,
		ReconciledAt: t.EventAt.UTC(),
		Local:        t.Local,
		From:         AllowedFrom(t.Event),
	}
	if len(t.From) > 0 {
		u.From = slices.Clone(t.From)
	}
	if !t.PeriodStart.IsZero() {
		start := t.PeriodStart.UTC()
		u.PeriodStart = &start
	}
	return u
}

// Apply mutates acc as the store would. Stores without conditional
// updates of their own use it after checking Admits.
func (u Update) Apply(acc *Account) {
	acc.setPlan(u.Plan)
	if u.PeriodStart != nil {
		acc.PlanStartDate = *u.PeriodStart
	}
	acc.PlanEndDate = u.PeriodEnd
	if u.SetProvider {
		acc.Provider = u.Provider
	}
	at := u.ReconciledAt
	if !u.Local {
		acc.LastReconciledAt = &at
	}
	acc.UpdatedAt = at
}

// Admits checks the write conditions against acc.
func (u Update) Admits(acc *Account) error {
	if !u.Local && acc.LastReconciledAt != nil && acc.LastReconciledAt.After(u.ReconciledAt) {
		return ErrStaleEvent
	}
	if len(u.From) > 0 {
		state := acc.State()
		for _, s := range u.From {
			if s == state {
				return nil
			}
		}
		return ErrStateMismatch
	}
	return nil
}

// TransactionStatusCompleted is the only status a recorded payment has.
const TransactionStatusCompleted = "completed"

// Transaction is an append-only billing log entry.
type Transaction struct {
	ID          string            `json:"id" bson:"_id"`
	UserID      string            `json:"userId" bson:"userId"`
	PlanType    plan.Type         `json:"planType" bson:"planType"`
	Status      string            `json:"status" bson:"status"`
	Date        time.Time         `json:"date" bson:"date"`
	Provider    ProviderRef       `json:"provider" bson:"provider"`
	PeriodStart time.Time         `json:"periodStart" bson:"periodStart"`
	PeriodEnd   *time.Time        `json:"periodEnd,omitempty" bson:"periodEnd,omitempty"`
	Amount      decimal.Decimal   `json:"amount" bson:"amount"`
	Currency    string            `json:"currency" bson:"currency"`
	EventID     string            `json:"eventId,omitempty" bson:"eventId,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// Key is the natural key that makes re-recording the same payment a no-op.
func (tx Transaction) Key() string {
	return tx.UserID + "|" + string(tx.Provider.Kind) + "|" + tx.Provider.ID + "|" + tx.PeriodStart.UTC().Format(time.RFC3339Nano)
}
