package service

import (
	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/domain/order"
	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/domain/proration"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/plugin"
	"github.com/billforge/billforge/internal/queue"
	"github.com/billforge/billforge/internal/types"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	Clock  types.Clock

	// Repositories
	SubscriptionRepo subscription.Repository
	OrderRepo        order.Repository
	PaymentRepo      payment.Repository

	// Boundary collaborators
	PaymentGateway payment.Gateway
	JobQueue       queue.Queue

	// Plugins, resolved at construction time
	Schedules         *plugin.ScheduleRegistry
	SubscriptionTypes *plugin.TypeRegistry
	Prorater          proration.Prorater
}
