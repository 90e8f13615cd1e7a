package plan_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/labgrid/pkg/apperr"
	"github.com/dmitrymomot/labgrid/pkg/plan"
)

func TestLimitsFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, plan.Limits{MaxGrids: 2, MaxTubes: 162}, plan.LimitsFor(plan.Free))
	assert.Equal(t, plan.Limits{MaxGrids: 5, MaxTubes: 1000}, plan.LimitsFor(plan.Standard))

	premium := plan.LimitsFor(plan.Premium)
	assert.True(t, premium.IsUnlimited)
	assert.Equal(t, plan.UnlimitedSentinel, premium.MaxGrids)
	assert.Equal(t, plan.UnlimitedSentinel, premium.MaxTubes)

	t.Run("unknown type falls back to free", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, plan.LimitsFor(plan.Free), plan.LimitsFor(plan.Type("enterprise")))
	})
}

func TestParse(t *testing.T) {
	t.Parallel()

	got, err := plan.Parse(" Standard ")
	require.NoError(t, err)
	assert.Equal(t, plan.Standard, got)

	_, err = plan.Parse("gold")
	require.Error(t, err)
	assert.ErrorIs(t, err, plan.ErrUnknownPlan)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	assert.Contains(t, err.Error(), "gold")
}

func TestLimitsAllows(t *testing.T) {
	t.Parallel()

	free := plan.LimitsFor(plan.Free)
	assert.True(t, free.AllowsGrids(1))
	assert.False(t, free.AllowsGrids(2))
	assert.True(t, free.AllowsTubes(161))
	assert.False(t, free.AllowsTubes(162))

	premium := plan.LimitsFor(plan.Premium)
	assert.True(t, premium.AllowsGrids(plan.UnlimitedSentinel+10))
}

const catalogYAML = `
stripe:
  - {plan: standard, months: 3, price_id: price_std_3}
  - {plan: premium, months: 12, price_id: price_prem_12}
paypal:
  - {plan: standard, months: 1, plan_id: P-STD-1}
  - {plan: premium, months: 12, plan_id: P-PREM-12}
paypal_orders:
  - {plan: standard, months: 3, amount: "29.90", currency: EUR}
`

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	c, err := plan.LoadCatalog(strings.NewReader(catalogYAML))
	require.NoError(t, err)

	t.Run("stripe price lookup", func(t *testing.T) {
		t.Parallel()
		id, err := c.StripePrice(plan.Premium, 12)
		require.NoError(t, err)
		assert.Equal(t, "price_prem_12", id)
	})

	t.Run("missing combination names the offer", func(t *testing.T) {
		t.Parallel()
		_, err := c.StripePrice(plan.Standard, 12)
		require.ErrorIs(t, err, plan.ErrNoPrice)
		assert.Contains(t, err.Error(), "standard/12m")
	})

	t.Run("invalid duration is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := c.PayPalPlan(plan.Standard, 0)
		assert.ErrorIs(t, err, plan.ErrInvalidDuration)
	})

	t.Run("paypal reverse lookup", func(t *testing.T) {
		t.Parallel()
		o, err := c.ResolvePayPalPlan("P-PREM-12")
		require.NoError(t, err)
		assert.Equal(t, plan.Offer{Plan: plan.Premium, Months: 12}, o)

		_, err = c.ResolvePayPalPlan("P-NOPE")
		assert.ErrorIs(t, err, plan.ErrUnknownProviderID)
	})

	t.Run("order price", func(t *testing.T) {
		t.Parallel()
		p, err := c.OrderPrice(plan.Standard, 3)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("29.90").Equal(p.Amount))
		assert.Equal(t, "EUR", p.Currency)
	})
}

func TestLoadCatalog_RejectsAmbiguousPayPalPlan(t *testing.T) {
	t.Parallel()

	_, err := plan.LoadCatalog(strings.NewReader(`
paypal:
  - {plan: standard, months: 1, plan_id: P-1}
  - {plan: premium, months: 1, plan_id: P-1}
`))
	assert.ErrorIs(t, err, plan.ErrInvalidCatalog)
}

func TestLoadCatalog_RejectsUnknownPlan(t *testing.T) {
	t.Parallel()

	_, err := plan.LoadCatalog(strings.NewReader(`
stripe:
  - {plan: gold, months: 1, price_id: price_1}
`))
	assert.ErrorIs(t, err, plan.ErrInvalidCatalog)
	assert.ErrorIs(t, err, plan.ErrUnknownPlan)
}

func TestLoadCatalog_Empty(t *testing.T) {
	t.Parallel()

	c, err := plan.LoadCatalog(strings.NewReader(""))
	require.NoError(t, err)
	_, err = c.StripePrice(plan.Standard, 3)
	assert.ErrorIs(t, err, plan.ErrNoPrice)
}
