package testutil

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/domain/order"
	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/logger"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	SubscriptionRepo subscription.Repository
	OrderRepo        order.Repository
	PaymentRepo      payment.Repository
}

// BaseServiceTestSuite provides common functionality for all service test
// suites: in-memory repositories, a simulated clock, a scripted payment
// gateway and a recording job queue.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	stores  Stores
	clock   *SimulatedClock
	gateway *FakePaymentGateway
	queue   *InMemoryQueue
	logger  *logger.Logger
	config  *config.Configuration
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	cfg := config.GetDefaultConfig()
	s.config = cfg

	var err error
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.stores = Stores{
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		OrderRepo:        NewInMemoryOrderStore(),
		PaymentRepo:      NewInMemoryPaymentStore(),
	}
	s.clock = NewSimulatedClock(time.Now().UTC())
	s.gateway = NewFakePaymentGateway()
	s.queue = NewInMemoryQueue()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.stores.SubscriptionRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.OrderRepo.(*InMemoryOrderStore).Clear()
	s.stores.PaymentRepo.(*InMemoryPaymentStore).Clear()
	s.gateway.Clear()
	s.queue.Clear()
}

func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

func (s *BaseServiceTestSuite) GetClock() *SimulatedClock {
	return s.clock
}

func (s *BaseServiceTestSuite) GetGateway() *FakePaymentGateway {
	return s.gateway
}

func (s *BaseServiceTestSuite) GetQueue() *InMemoryQueue {
	return s.queue
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}
