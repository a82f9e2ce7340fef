package payment

import "context"

// Gateway executes payments against an external provider.
//
// CreatePayment returns nil on success. Declines surface as errors marked
// with ierr.ErrPaymentHardDeclined (permanent, never retried) or
// ierr.ErrPaymentGateway (ambiguous or transient, safe to retry by
// re-closing the order). Implementations own their timeouts; a timeout must
// come back as a retryable gateway error, not a success.
type Gateway interface {
	CreatePayment(ctx context.Context, payment *Payment) error
}
