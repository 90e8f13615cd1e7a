package plan

import (
	"fmt"
	"strings"
)

// Type identifies a subscription tier.
type Type string

const (
	Free     Type = "free"
	Standard Type = "standard"
	Premium  Type = "premium"
)

// UnlimitedSentinel stands in for "no limit" on premium accounts.
// It is a finite number so that counters and storage never deal with infinity.
const UnlimitedSentinel = 999999

// Limits is the quota a plan grants to a main account and its secondary users.
type Limits struct {
	MaxGrids    int  `json:"maxGrids" bson:"maxGrids"`
	MaxTubes    int  `json:"maxTubes" bson:"maxTubes"`
	IsUnlimited bool `json:"isUnlimited" bson:"isUnlimited"`
}

var limits = map[Type]Limits{
	Free:     {MaxGrids: 2, MaxTubes: 162},
	Standard: {MaxGrids: 5, MaxTubes: 1000},
	Premium:  {MaxGrids: UnlimitedSentinel, MaxTubes: UnlimitedSentinel, IsUnlimited: true},
}

// LimitsFor returns the quota for t.
// Unknown types get the free quota; validate with Parse first when the input is untrusted.
func LimitsFor(t Type) Limits {
	if l, ok := limits[t]; ok {
		return l
	}
	return limits[Free]
}

// Valid reports whether t is one of the known tiers.
func (t Type) Valid() bool {
	_, ok := limits[t]
	return ok
}

func (t Type) String() string { return string(t) }

// Parse validates a plan type received from a client or provider metadata.
func Parse(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, s)
	}
	return t, nil
}

// AllowsGrids reports whether an account holding current grids may create one more.
func (l Limits) AllowsGrids(current int) bool {
	return l.IsUnlimited || current < l.MaxGrids
}

// AllowsTubes reports whether an account holding current tubes may create one more.
func (l Limits) AllowsTubes(current int) bool {
	return l.IsUnlimited || current < l.MaxTubes
}
