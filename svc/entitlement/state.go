package entitlement

import (
	"slices"

	"github.com/dmitrymomot/labgrid/pkg/plan"
)

// State is the plan state derived from the plan type and provider reference.
type State string

const (
	StateTrial         State = "trial"
	StateComplimentary State = "complimentary"
	StateFree          State = "free"
	StatePaidStripe    State = "paid_stripe"
	StatePaidPayPal    State = "paid_paypal"
	StatePrepaid       State = "prepaid"
)

// StateOf maps a plan type and provider kind to a State.
func StateOf(t plan.Type, kind ProviderKind) State {
	switch kind {
	case ProviderStripe:
		return StatePaidStripe
	case ProviderPayPal:
		return StatePaidPayPal
	case ProviderPayPalOrder:
		return StatePrepaid
	}
	switch t {
	case plan.Premium:
		return StateTrial
	case plan.Standard:
		return StateComplimentary
	default:
		return StateFree
	}
}

// Match is the storage predicate equivalent to a State.
// An empty Plan matches any plan type.
type Match struct {
	Kind ProviderKind
	Plan plan.Type
}

// Match returns the predicate stores use to select accounts in s.
func (s State) Match() Match {
	switch s {
	case StateTrial:
		return Match{Kind: ProviderNone, Plan: plan.Premium}
	case StateComplimentary:
		return Match{Kind: ProviderNone, Plan: plan.Standard}
	case StateFree:
		return Match{Kind: ProviderNone, Plan: plan.Free}
	case StatePaidStripe:
		return Match{Kind: ProviderStripe}
	case StatePaidPayPal:
		return Match{Kind: ProviderPayPal}
	case StatePrepaid:
		return Match{Kind: ProviderPayPalOrder}
	}
	return Match{Kind: "-", Plan: "-"}
}

// Event is a cause of a plan transition.
type Event string

const (
	EventCheckoutCompleted Event = "checkout_completed"
	EventRenewed           Event = "renewed"
	EventProviderCancelled Event = "provider_cancelled"
	EventTrialExpired      Event = "trial_expired"
	EventPrepaidExpired    Event = "prepaid_expired"
)

var allowedFrom = map[Event][]State{
	EventCheckoutCompleted: nil,
	EventRenewed:           nil,
	EventProviderCancelled: {StatePaidStripe, StatePaidPayPal},
	EventTrialExpired:      {StateTrial},
	EventPrepaidExpired:    {StatePrepaid},
}

// AllowedFrom lists the states ev may fire from. Nil means any state.
func AllowedFrom(ev Event) []State {
	return slices.Clone(allowedFrom[ev])
}

// Valid reports whether ev is a known event.
func (ev Event) Valid() bool {
	_, ok := allowedFrom[ev]
	return ok
}

// Downgrades reports whether ev moves the account to the free plan.
func (ev Event) Downgrades() bool {
	switch ev {
	case EventProviderCancelled, EventTrialExpired, EventPrepaidExpired:
		return true
	}
	return false
}

// Permits reports whether ev may fire from s.
func (ev Event) Permits(s State) bool {
	from := allowedFrom[ev]
	return from == nil || slices.Contains(from, s)
}
