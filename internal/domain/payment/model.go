package payment

import (
	"time"

	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// Payment is one attempt to collect an order's total through a gateway.
type Payment struct {
	// ID is the unique identifier for the payment
	ID string `db:"id" json:"id"`

	// OrderID is the order being paid
	OrderID string `db:"order_id" json:"order_id"`

	// PaymentMethodID is the stored payment method charged
	PaymentMethodID string `db:"payment_method_id" json:"payment_method_id"`

	// PaymentGatewayID is the gateway executing the charge
	PaymentGatewayID string `db:"payment_gateway_id" json:"payment_gateway_id"`

	// Amount being collected
	Amount decimal.Decimal `db:"amount" json:"amount"`

	// Currency is the lowercase 3 letter ISO code of the amount
	Currency string `db:"currency" json:"currency"`

	// Status is the state of the payment
	Status types.PaymentStatus `db:"status" json:"status"`

	// ErrorMessage carries the decline reason on failure
	ErrorMessage *string `db:"error_message" json:"error_message"`

	// SucceededAt is when the gateway confirmed the charge
	SucceededAt *time.Time `db:"succeeded_at" json:"succeeded_at"`

	// FailedAt is when the gateway declined the charge
	FailedAt *time.Time `db:"failed_at" json:"failed_at"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// New returns a pending payment for the order.
func New(orderID, paymentMethodID, gatewayID string, amount decimal.Decimal, currency string, now time.Time) *Payment {
	return &Payment{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		OrderID:          orderID,
		PaymentMethodID:  paymentMethodID,
		PaymentGatewayID: gatewayID,
		Amount:           amount,
		Currency:         currency,
		Status:           types.PaymentStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
