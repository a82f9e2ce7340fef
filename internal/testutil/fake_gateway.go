package testutil

import (
	"context"
	"sync"

	"github.com/billforge/billforge/internal/domain/payment"
)

// FakePaymentGateway implements payment.Gateway with scriptable outcomes.
// By default every payment succeeds; tests can queue errors to simulate
// declines.
type FakePaymentGateway struct {
	mu sync.Mutex

	// Payments records every payment the gateway was asked to create
	Payments []*payment.Payment

	// nextErrors are consumed one per CreatePayment call
	nextErrors []error
}

func NewFakePaymentGateway() *FakePaymentGateway {
	return &FakePaymentGateway{}
}

// FailNextWith queues an error returned by the next CreatePayment call.
func (g *FakePaymentGateway) FailNextWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextErrors = append(g.nextErrors, err)
}

func (g *FakePaymentGateway) CreatePayment(ctx context.Context, pay *payment.Payment) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Payments = append(g.Payments, pay)
	if len(g.nextErrors) > 0 {
		err := g.nextErrors[0]
		g.nextErrors = g.nextErrors[1:]
		return err
	}
	return nil
}

// CallCount returns how many payments the gateway has seen.
func (g *FakePaymentGateway) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Payments)
}

// Clear resets recorded payments and queued errors.
func (g *FakePaymentGateway) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Payments = nil
	g.nextErrors = nil
}
