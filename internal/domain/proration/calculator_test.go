package proration

import (
	"context"
	"testing"
	"time"

	"github.com/billforge/billforge/internal/domain/order"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func period(t *testing.T, start, end time.Time) types.BillingPeriod {
	t.Helper()
	p, err := types.NewBillingPeriod(start, end)
	require.NoError(t, err)
	return p
}

func TestProrateOrderItem(t *testing.T) {
	prorater := NewTimeBasedProrater()
	ctx := context.Background()

	feb1 := time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)
	feb15 := time.Date(2019, 2, 15, 0, 0, 0, 0, time.UTC)
	mar1 := time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		unitPrice  string
		currency   string
		period     types.BillingPeriod
		fullPeriod types.BillingPeriod
		want       string
	}{
		{
			name:       "half of February is half the price",
			unitPrice:  "20",
			currency:   "usd",
			period:     period(t, feb15, mar1),
			fullPeriod: period(t, feb1, mar1),
			want:       "10",
		},
		{
			name:       "full period is the full price",
			unitPrice:  "20",
			currency:   "usd",
			period:     period(t, feb1, mar1),
			fullPeriod: period(t, feb1, mar1),
			want:       "20",
		},
		{
			name:       "result rounds to currency precision",
			unitPrice:  "10",
			currency:   "usd",
			period:     period(t, feb1, feb1.AddDate(0, 0, 10)),
			fullPeriod: period(t, feb1, mar1),
			want:       "3.57",
		},
		{
			name:       "zero decimal currency rounds to whole units",
			unitPrice:  "1000",
			currency:   "jpy",
			period:     period(t, feb1, feb1.AddDate(0, 0, 10)),
			fullPeriod: period(t, feb1, mar1),
			want:       "357",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := order.NewLineItem("ord_1", feb1)
			item.UnitPrice = decimal.RequireFromString(tt.unitPrice)
			item.Currency = tt.currency

			got, err := prorater.ProrateOrderItem(ctx, item, tt.period, tt.fullPeriod)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestProrateOrderItemRejectsPeriodLongerThanFull(t *testing.T) {
	prorater := NewTimeBasedProrater()

	feb1 := time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)
	item := order.NewLineItem("ord_1", feb1)
	item.UnitPrice = decimal.NewFromInt(20)
	item.Currency = "usd"

	_, err := prorater.ProrateOrderItem(
		context.Background(),
		item,
		period(t, feb1, feb1.AddDate(0, 2, 0)),
		period(t, feb1, feb1.AddDate(0, 1, 0)),
	)
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestProrateOrderItemRejectsEmptyFullPeriod(t *testing.T) {
	prorater := NewTimeBasedProrater()

	feb1 := time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)
	item := order.NewLineItem("ord_1", feb1)
	item.UnitPrice = decimal.NewFromInt(20)
	item.Currency = "usd"

	_, err := prorater.ProrateOrderItem(
		context.Background(),
		item,
		period(t, feb1, feb1.AddDate(0, 1, 0)),
		types.BillingPeriod{},
	)
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}
