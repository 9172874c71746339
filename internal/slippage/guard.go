// Package slippage re-validates a previously observed price against a
// freshly fetched one immediately before a trade is allowed to proceed.
package slippage

import (
	"fmt"
	"math"
)

// Direction is the side of the trade being guarded.
type Direction string

const (
	// Buy guards a deposit: reject if the price rose beyond tolerance.
	Buy Direction = "buy"
	// Sell guards a withdrawal: reject if the price fell beyond tolerance.
	Sell Direction = "sell"
)

// Result is the outcome of a slippage check. When Allowed, Price is the
// fresh observation and is the price the trade must use: the second,
// more recent observation supersedes the first.
type Result struct {
	Allowed bool
	Price   float64
	Reason  string
}

// Validate compares the price that triggered the trade decision against
// a fresh fetch taken immediately before the trade.
//
// Rejection is not an error: it is a deliberate "sit out this cycle"
// outcome, re-evaluated on the next tick.
func Validate(observedPrice, freshPrice float64, direction Direction, maxSlippagePct, toleranceBandPct float64) Result {
	if observedPrice <= 0 || freshPrice <= 0 {
		return Result{Reason: fmt.Sprintf("non-positive price (observed %.6f, fresh %.6f)", observedPrice, freshPrice)}
	}

	slippagePct := math.Abs(freshPrice-observedPrice) / observedPrice * 100
	if slippagePct > maxSlippagePct {
		return Result{Reason: fmt.Sprintf("slippage too high: %.2f%% > %.2f%%", slippagePct, maxSlippagePct)}
	}

	switch direction {
	case Buy:
		if freshPrice > observedPrice*(1+toleranceBandPct/100) {
			return Result{Reason: fmt.Sprintf("price increased beyond tolerance: %.6f vs %.6f", freshPrice, observedPrice)}
		}
	case Sell:
		if freshPrice < observedPrice*(1-toleranceBandPct/100) {
			return Result{Reason: fmt.Sprintf("price decreased beyond tolerance: %.6f vs %.6f", freshPrice, observedPrice)}
		}
	default:
		return Result{Reason: fmt.Sprintf("unknown trade direction %q", direction)}
	}

	return Result{Allowed: true, Price: freshPrice}
}
