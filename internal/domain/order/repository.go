package order

import (
	"context"

	"github.com/billforge/billforge/internal/types"
)

// Repository persists orders together with their line items. Save of a
// single order and its items is atomic.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter *types.OrderFilter) ([]*Order, error)
}
