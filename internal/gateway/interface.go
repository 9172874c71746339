// Package gateway provides the market/ledger API client the bot trades
// through: price and balance queries plus the two trade primitives,
// deposit-into-position (stake) and withdraw-from-position (unstake).
package gateway

import "context"

// Gateway is the interface the core consumes. Implementations report
// failure through errors: IsTransient distinguishes retryable faults,
// and errors wrapping ErrRejected are definitive refusals.
//
// clientTag is an idempotency tag attached to each trade request so the
// backend can deduplicate a retried submission whose first attempt may
// or may not have executed.
type Gateway interface {
	// CurrentPrice returns the asset's current price in capital units.
	CurrentPrice(ctx context.Context) (float64, error)
	// AvailableBalance returns the free wallet balance.
	AvailableBalance(ctx context.Context) (float64, error)
	// HoldingsBalance returns asset units currently held in positions.
	HoldingsBalance(ctx context.Context) (float64, error)
	// Deposit commits amount (capital units) into the position pool.
	Deposit(ctx context.Context, amount float64, clientTag string) error
	// Withdraw liquidates amount (asset units) from the position pool.
	Withdraw(ctx context.Context, amount float64, clientTag string) error
}
