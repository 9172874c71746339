package gateway

import (
	"context"
	"fmt"
)

// MockGateway implements Gateway for testing. Prices are served from a
// scripted queue (the last price repeats once the queue drains), and
// per-call errors can be injected for each operation.
type MockGateway struct {
	PriceQueue    []float64
	Balance       float64
	Holdings      float64
	PriceErrs     []error
	BalanceErr    error
	DepositErrs   []error
	WithdrawErrs  []error
	PriceCalls    int
	BalanceCalls  int
	DepositCalls  int
	WithdrawCalls int
	DepositTags   []string
	WithdrawTags  []string
	Deposited     []float64
	Withdrawn     []float64
}

// NewMockGateway creates a mock serving a constant price.
func NewMockGateway(price, balance float64) *MockGateway {
	return &MockGateway{PriceQueue: []float64{price}, Balance: balance}
}

// CurrentPrice implements Gateway.
func (m *MockGateway) CurrentPrice(_ context.Context) (float64, error) {
	call := m.PriceCalls
	m.PriceCalls++
	if call < len(m.PriceErrs) && m.PriceErrs[call] != nil {
		return 0, m.PriceErrs[call]
	}
	if len(m.PriceQueue) == 0 {
		return 0, fmt.Errorf("mock gateway has no scripted price")
	}
	if call >= len(m.PriceQueue) {
		return m.PriceQueue[len(m.PriceQueue)-1], nil
	}
	return m.PriceQueue[call], nil
}

// AvailableBalance implements Gateway.
func (m *MockGateway) AvailableBalance(_ context.Context) (float64, error) {
	m.BalanceCalls++
	if m.BalanceErr != nil {
		return 0, m.BalanceErr
	}
	return m.Balance, nil
}

// HoldingsBalance implements Gateway.
func (m *MockGateway) HoldingsBalance(_ context.Context) (float64, error) {
	return m.Holdings, nil
}

// Deposit implements Gateway.
func (m *MockGateway) Deposit(_ context.Context, amount float64, clientTag string) error {
	call := m.DepositCalls
	m.DepositCalls++
	if call < len(m.DepositErrs) && m.DepositErrs[call] != nil {
		return m.DepositErrs[call]
	}
	m.Deposited = append(m.Deposited, amount)
	m.DepositTags = append(m.DepositTags, clientTag)
	m.Balance -= amount
	return nil
}

// Withdraw implements Gateway.
func (m *MockGateway) Withdraw(_ context.Context, amount float64, clientTag string) error {
	call := m.WithdrawCalls
	m.WithdrawCalls++
	if call < len(m.WithdrawErrs) && m.WithdrawErrs[call] != nil {
		return m.WithdrawErrs[call]
	}
	m.Withdrawn = append(m.Withdrawn, amount)
	m.WithdrawTags = append(m.WithdrawTags, clientTag)
	return nil
}

// Ensure MockGateway implements Gateway at compile time.
var _ Gateway = (*MockGateway)(nil)
