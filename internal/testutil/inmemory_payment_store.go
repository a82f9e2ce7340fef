package testutil

import (
	"context"

	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/types"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Payment](),
	}
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, pay *payment.Payment) error {
	return s.InMemoryStore.Create(ctx, pay.ID, pay)
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryPaymentStore) Update(ctx context.Context, pay *payment.Payment) error {
	return s.InMemoryStore.Update(ctx, pay.ID, pay)
}

func (s *InMemoryPaymentStore) ListByOrder(ctx context.Context, orderID string) ([]*payment.Payment, error) {
	return s.InMemoryStore.List(ctx, orderID,
		func(ctx context.Context, pay *payment.Payment, filter interface{}) bool {
			return pay != nil && pay.OrderID == orderID
		},
		func(i, j *payment.Payment) bool {
			return i.ID < j.ID
		},
	)
}

func (s *InMemoryPaymentStore) IsOrderPaid(ctx context.Context, orderID string) (bool, error) {
	payments, err := s.ListByOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, pay := range payments {
		if pay.Status == types.PaymentStatusSucceeded {
			return true, nil
		}
	}
	return false, nil
}
