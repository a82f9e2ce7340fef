package gateway

import (
	"context"

	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/logger"
)

// SandboxGateway approves every payment. It stands in for a real provider
// in local and development deployments.
type SandboxGateway struct {
	log *logger.Logger
}

func NewSandboxGateway(log *logger.Logger) payment.Gateway {
	return &SandboxGateway{log: log}
}

func (g *SandboxGateway) CreatePayment(ctx context.Context, pay *payment.Payment) error {
	g.log.Infow("sandbox gateway approved payment",
		"payment_id", pay.ID,
		"order_id", pay.OrderID,
		"amount", pay.Amount.String(),
		"currency", pay.Currency,
	)
	return nil
}
