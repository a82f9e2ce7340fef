package payment

import "context"

type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	Update(ctx context.Context, payment *Payment) error
	ListByOrder(ctx context.Context, orderID string) ([]*Payment, error)

	// IsOrderPaid reports whether any succeeded payment exists for the
	// order. closeOrder checks this before creating a payment so a retried
	// close never double-charges.
	IsOrderPaid(ctx context.Context, orderID string) (bool, error)
}
