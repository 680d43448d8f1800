package pricing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentacar/internal/domain/pricing"
	"rentacar/internal/domain/shared/money"
	"rentacar/internal/domain/shared/period"
)

var today = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func policy(t *testing.T, id, category, location, rate string, from, until time.Time) pricing.Policy {
	t.Helper()
	p, err := pricing.NewPolicy(id, category, location, money.MustFromNet(rate, "0.19", "EUR"), from, until)
	require.NoError(t, err)
	return p
}

func TestPolicyQuote_FourBillableDays(t *testing.T) {
	p := policy(t, "p1", "compact", "", "50.00", time.Time{}, time.Time{})
	bp, err := period.New(today.AddDate(0, 0, 7), today.AddDate(0, 0, 10), today)
	require.NoError(t, err)

	q, err := p.Quote(bp)

	require.NoError(t, err)
	assert.Equal(t, 4, q.Days)
	assert.True(t, q.DailyRateNet().Equal(decimal.RequireFromString("50.00")))
	assert.True(t, q.TotalNet().Equal(decimal.RequireFromString("200.00")))
	assert.True(t, q.TotalVAT().Equal(decimal.RequireFromString("38.00")))
	assert.True(t, q.TotalGross().Equal(decimal.RequireFromString("238.00")))
	assert.True(t, q.VATRate().Equal(decimal.RequireFromString("0.19")))
	assert.Equal(t, "EUR", q.Currency())
}

func TestPolicyTable_LocationSpecificWins(t *testing.T) {
	table := pricing.PolicyTable{
		policy(t, "generic", "SUV", "", "80.00", time.Time{}, time.Time{}),
		policy(t, "muc", "SUV", "MUC", "95.00", time.Time{}, time.Time{}),
	}

	atMUC, err := table.Select("suv", "muc", today)
	require.NoError(t, err)
	atBER, err := table.Select("SUV", "BER", today)
	require.NoError(t, err)

	assert.Equal(t, "muc", atMUC.ID)
	assert.Equal(t, "generic", atBER.ID)
}

func TestPolicyTable_ValidityWindow(t *testing.T) {
	table := pricing.PolicyTable{
		policy(t, "winter", "VAN", "", "60.00", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)),
		policy(t, "summer", "VAN", "", "75.00", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), time.Time{}),
	}

	got, err := table.Select("VAN", "", today)
	require.NoError(t, err)
	assert.Equal(t, "summer", got.ID)

	got, err = table.Select("VAN", "", time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "winter", got.ID)
}

func TestPolicyTable_NoMatch(t *testing.T) {
	table := pricing.PolicyTable{policy(t, "p", "COMPACT", "", "40.00", time.Time{}, time.Time{})}

	_, err := table.Select("LUXURY", "FRA", today)

	require.ErrorIs(t, err, pricing.ErrNoPricingPolicyFound)
	var noPolicy *pricing.NoPolicyError
	require.ErrorAs(t, err, &noPolicy)
	assert.Equal(t, "LUXURY", noPolicy.CategoryCode)
	assert.Equal(t, "FRA", noPolicy.LocationCode)
}

func TestNewPolicy_Validation(t *testing.T) {
	_, err := pricing.NewPolicy("x", " ", "", money.MustFromNet("10", "0.19", "EUR"), time.Time{}, time.Time{})
	assert.ErrorIs(t, err, pricing.ErrInvalidPolicy)

	_, err = pricing.NewPolicy("x", "SUV", "", money.MustFromNet("-1", "0.19", "EUR"), time.Time{}, time.Time{})
	assert.ErrorIs(t, err, pricing.ErrInvalidPolicy)

	_, err = pricing.NewPolicy("x", "SUV", "", money.MustFromNet("10", "0.19", "EUR"), today, today.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, pricing.ErrInvalidPolicy)
}
