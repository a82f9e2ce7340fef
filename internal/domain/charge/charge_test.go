package charge

import (
	"testing"
	"time"

	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthPeriod(t *testing.T, year int, month time.Month) types.BillingPeriod {
	t.Helper()
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	period, err := types.NewBillingPeriod(start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	return period
}

func TestNewCharge(t *testing.T) {
	period := monthPeriod(t, 2024, time.March)

	c, err := New(Charge{
		Title:             "Gold plan",
		UnitPrice:         decimal.NewFromInt(20),
		Currency:          "usd",
		BillingPeriod:     period,
		FullBillingPeriod: period,
	})
	require.NoError(t, err)
	assert.True(t, c.Quantity.Equal(decimal.NewFromInt(1)), "zero quantity defaults to 1")

	_, err = New(Charge{
		UnitPrice:         decimal.NewFromInt(20),
		Currency:          "usd",
		BillingPeriod:     period,
		FullBillingPeriod: period,
	})
	assert.Error(t, err, "title is required")

	_, err = New(Charge{
		Title:             "Gold plan",
		UnitPrice:         decimal.NewFromInt(20),
		BillingPeriod:     period,
		FullBillingPeriod: period,
	})
	assert.Error(t, err, "currency is required")

	_, err = New(Charge{
		Title:             "Gold plan",
		UnitPrice:         decimal.NewFromInt(-5),
		Currency:          "usd",
		BillingPeriod:     period,
		FullBillingPeriod: period,
	})
	assert.Error(t, err, "negative unit price is rejected")

	_, err = New(Charge{
		Title:     "Gold plan",
		UnitPrice: decimal.NewFromInt(20),
		Currency:  "usd",
	})
	assert.Error(t, err, "both billing periods are required")
}

func TestChargeNeedsProration(t *testing.T) {
	full := monthPeriod(t, 2019, time.February)
	partial, err := types.NewBillingPeriod(
		time.Date(2019, 2, 15, 0, 0, 0, 0, time.UTC),
		full.End,
	)
	require.NoError(t, err)

	c, err := New(Charge{
		Title:             "Gold plan",
		UnitPrice:         decimal.NewFromInt(20),
		Currency:          "usd",
		BillingPeriod:     partial,
		FullBillingPeriod: full,
	})
	require.NoError(t, err)
	assert.True(t, c.NeedsProration())

	c.BillingPeriod = full
	assert.False(t, c.NeedsProration())
}

func TestChargeTotal(t *testing.T) {
	period := monthPeriod(t, 2024, time.March)
	c, err := New(Charge{
		Title:             "Gold plan",
		Quantity:          decimal.NewFromInt(3),
		UnitPrice:         decimal.RequireFromString("9.99"),
		Currency:          "usd",
		BillingPeriod:     period,
		FullBillingPeriod: period,
	})
	require.NoError(t, err)
	assert.True(t, c.Total().Equal(decimal.RequireFromString("29.97")))
}
