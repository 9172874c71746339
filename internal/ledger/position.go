package ledger

import (
	"fmt"
	"time"
)

// PositionStatus is the lifecycle state of a position. The transition
// is one-way: Active -> Closed, exactly once.
type PositionStatus string

const (
	// StatusActive marks a position whose capital is still committed.
	StatusActive PositionStatus = "active"
	// StatusClosed marks a position whose capital has been returned.
	StatusClosed PositionStatus = "closed"
)

// Valid returns true if the status is one of the defined constants.
func (s PositionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusClosed:
		return true
	default:
		return false
	}
}

// Position is one discrete capital commitment with its own entry price
// and profit target. IDs are assigned by the Ledger, monotonically
// increasing, and never reused.
type Position struct {
	ID               int64          `json:"id"`
	EntryPrice       float64        `json:"entry_price"`
	TargetPrice      float64        `json:"target_price"`
	AssetAmount      float64        `json:"asset_amount"`
	CapitalCommitted float64        `json:"capital_committed"`
	Status           PositionStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`

	// Set atomically when the position closes, never before.
	ExitPrice              float64   `json:"exit_price,omitempty"`
	CapitalReturned        float64   `json:"capital_returned,omitempty"`
	RealizedProfit         float64   `json:"realized_profit,omitempty"`
	RealizedProfitFraction float64   `json:"realized_profit_fraction,omitempty"`
	ClosedAt               time.Time `json:"closed_at,omitempty"`
}

// StopLossPrice returns the price at or below which the position should
// be liquidated for the given loss fraction.
func (p *Position) StopLossPrice(stopLossFraction float64) float64 {
	return p.EntryPrice * (1 - stopLossFraction)
}

// Validate checks the position's field/state invariants: an Active
// position carries no close-only fields, a Closed position carries all
// of them.
func (p *Position) Validate() error {
	if !p.Status.Valid() {
		return fmt.Errorf("position %d: unknown status %q", p.ID, p.Status)
	}
	if p.ID <= 0 {
		return fmt.Errorf("position %d: id must be positive", p.ID)
	}
	if p.EntryPrice <= 0 {
		return fmt.Errorf("position %d: entry price must be positive (current: %.6f)", p.ID, p.EntryPrice)
	}
	if p.TargetPrice <= 0 {
		return fmt.Errorf("position %d: target price must be positive (current: %.6f)", p.ID, p.TargetPrice)
	}
	if p.AssetAmount <= 0 {
		return fmt.Errorf("position %d: asset amount must be positive (current: %.6f)", p.ID, p.AssetAmount)
	}
	if p.CapitalCommitted <= 0 {
		return fmt.Errorf("position %d: capital committed must be positive (current: %.6f)", p.ID, p.CapitalCommitted)
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("position %d: created-at must be set", p.ID)
	}

	switch p.Status {
	case StatusActive:
		if p.ExitPrice != 0 || p.CapitalReturned != 0 || p.RealizedProfit != 0 ||
			p.RealizedProfitFraction != 0 || !p.ClosedAt.IsZero() {
			return fmt.Errorf("position %d: active positions must not carry close fields", p.ID)
		}
	case StatusClosed:
		if p.ExitPrice <= 0 {
			return fmt.Errorf("position %d: closed position missing exit price", p.ID)
		}
		if p.CapitalReturned <= 0 {
			return fmt.Errorf("position %d: closed position missing capital returned", p.ID)
		}
		if p.ClosedAt.IsZero() {
			return fmt.Errorf("position %d: closed position missing closed-at", p.ID)
		}
		if p.ClosedAt.Before(p.CreatedAt) {
			return fmt.Errorf("position %d: closed-at (%v) precedes created-at (%v)", p.ID, p.ClosedAt, p.CreatedAt)
		}
	}
	return nil
}
