package testutil

import (
	"context"

	"github.com/billforge/billforge/internal/domain/order"
	"github.com/billforge/billforge/internal/types"
	"github.com/samber/lo"
)

// InMemoryOrderStore implements order.Repository
type InMemoryOrderStore struct {
	*InMemoryStore[*order.Order]
}

func NewInMemoryOrderStore() *InMemoryOrderStore {
	return &InMemoryOrderStore{
		InMemoryStore: NewInMemoryStore[*order.Order](),
	}
}

// orderFilterFn implements filtering logic for orders
func orderFilterFn(ctx context.Context, ord *order.Order, filter interface{}) bool {
	if ord == nil {
		return false
	}

	f, ok := filter.(*types.OrderFilter)
	if !ok || f == nil {
		return true
	}

	if f.OrderType != "" && ord.OrderType != f.OrderType {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, ord.Status) {
		return false
	}
	if f.StoreID != "" && ord.StoreID != f.StoreID {
		return false
	}
	if f.CustomerID != "" && ord.CustomerID != f.CustomerID {
		return false
	}
	if f.BillingScheduleID != "" && ord.BillingScheduleID != f.BillingScheduleID {
		return false
	}
	if f.PaymentMethodID != "" && ord.PaymentMethodID != f.PaymentMethodID {
		return false
	}
	if f.Period != nil && !ord.BillingPeriod.Equal(*f.Period) {
		return false
	}
	if f.PeriodEndBefore != nil && ord.BillingPeriod.End.After(*f.PeriodEndBefore) {
		return false
	}
	return true
}

func orderSortFn(i, j *order.Order) bool {
	return i.ID < j.ID
}

func (s *InMemoryOrderStore) Create(ctx context.Context, ord *order.Order) error {
	return s.InMemoryStore.Create(ctx, ord.ID, ord)
}

func (s *InMemoryOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryOrderStore) Update(ctx context.Context, ord *order.Order) error {
	return s.InMemoryStore.Update(ctx, ord.ID, ord)
}

func (s *InMemoryOrderStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}

func (s *InMemoryOrderStore) List(ctx context.Context, filter *types.OrderFilter) ([]*order.Order, error) {
	orders, err := s.InMemoryStore.List(ctx, filter, orderFilterFn, orderSortFn)
	if err != nil {
		return nil, err
	}
	if filter != nil && filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}
	return orders, nil
}
