package entitlement_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/labgrid/pkg/plan"
	"github.com/dmitrymomot/labgrid/svc/entitlement"
)

func TestStateOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		plan plan.Type
		kind entitlement.ProviderKind
		want entitlement.State
	}{
		{plan.Premium, entitlement.ProviderNone, entitlement.StateTrial},
		{plan.Standard, entitlement.ProviderNone, entitlement.StateComplimentary},
		{plan.Free, entitlement.ProviderNone, entitlement.StateFree},
		{plan.Standard, entitlement.ProviderStripe, entitlement.StatePaidStripe},
		{plan.Premium, entitlement.ProviderPayPal, entitlement.StatePaidPayPal},
		{plan.Standard, entitlement.ProviderPayPalOrder, entitlement.StatePrepaid},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, entitlement.StateOf(tt.plan, tt.kind))

			m := tt.want.Match()
			assert.Equal(t, tt.kind, m.Kind)
			if tt.kind == entitlement.ProviderNone {
				assert.Equal(t, tt.plan, m.Plan)
			} else {
				assert.Empty(t, m.Plan)
			}
		})
	}
}

func TestEventPermits(t *testing.T) {
	t.Parallel()

	assert.True(t, entitlement.EventCheckoutCompleted.Permits(entitlement.StatePrepaid))
	assert.True(t, entitlement.EventRenewed.Permits(entitlement.StateFree))
	assert.True(t, entitlement.EventProviderCancelled.Permits(entitlement.StatePaidPayPal))
	assert.False(t, entitlement.EventProviderCancelled.Permits(entitlement.StateTrial))
	assert.True(t, entitlement.EventTrialExpired.Permits(entitlement.StateTrial))
	assert.False(t, entitlement.EventTrialExpired.Permits(entitlement.StatePaidStripe))
	assert.False(t, entitlement.EventPrepaidExpired.Permits(entitlement.StatePaidStripe))

	assert.Nil(t, entitlement.AllowedFrom(entitlement.EventCheckoutCompleted))
	assert.Equal(t, []entitlement.State{entitlement.StateTrial}, entitlement.AllowedFrom(entitlement.EventTrialExpired))
}

func TestUpdateAdmits(t *testing.T) {
	t.Parallel()

	last := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	acc := &entitlement.Account{PlanType: plan.Premium, LastReconciledAt: &last}

	u := entitlement.Update{ReconciledAt: last}
	assert.NoError(t, u.Admits(acc), "equal timestamps replay")

	u = entitlement.Update{ReconciledAt: last.Add(-time.Second)}
	assert.ErrorIs(t, u.Admits(acc), entitlement.ErrStaleEvent)

	u = entitlement.Update{ReconciledAt: last.Add(time.Second), From: []entitlement.State{entitlement.StatePrepaid}}
	assert.ErrorIs(t, u.Admits(acc), entitlement.ErrStateMismatch)

	u = entitlement.Update{ReconciledAt: last.Add(-time.Hour), Local: true}
	assert.NoError(t, u.Admits(acc), "local writes are not ordered")
}

func TestUpdateApply_LocalKeepsEventTime(t *testing.T) {
	t.Parallel()

	last := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	now := last.Add(48 * time.Hour)
	acc := &entitlement.Account{PlanType: plan.Premium, LastReconciledAt: &last}

	entitlement.Update{Plan: plan.Free, Limits: plan.LimitsFor(plan.Free), ReconciledAt: now, Local: true}.Apply(acc)
	assert.Equal(t, plan.Free, acc.PlanType)
	assert.Equal(t, last, *acc.LastReconciledAt)
	assert.Equal(t, now, acc.UpdatedAt)
}

func TestTransactionKey(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	a := entitlement.Transaction{UserID: "u1", Provider: entitlement.PayPalRef("I-1"), PeriodStart: start}
	b := entitlement.Transaction{ID: "other", UserID: "u1", Provider: entitlement.PayPalRef("I-1"), PeriodStart: start.In(time.FixedZone("x", 3600))}
	c := entitlement.Transaction{UserID: "u1", Provider: entitlement.StripeRef("I-1"), PeriodStart: start}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}
