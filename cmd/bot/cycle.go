package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eddiefleurent/schrute_bucks/internal/ledger"
	"github.com/eddiefleurent/schrute_bucks/internal/retry"
	"github.com/eddiefleurent/schrute_bucks/internal/slippage"
)

// Cycle executes one scheduler tick: decide whether to open a new
// position, always scan actives for closes, persist after every
// mutation, then report. Ticks run strictly sequentially.
type Cycle struct {
	bot *Bot
}

// NewCycle creates a cycle handler bound to the bot's collaborators.
func NewCycle(bot *Bot) *Cycle {
	return &Cycle{bot: bot}
}

// Run executes one tick. All failures are local to this tick's action:
// nothing here terminates the loop.
func (c *Cycle) Run(ctx context.Context) {
	c.bot.logger.Println("Starting cycle...")

	c.openDecision(ctx)
	c.closeScan(ctx)
	c.report()

	c.bot.logger.Println("Cycle complete")
}

// openDecision walks the open gates in order: cap/position-count,
// purchase interval, entry-price ceiling, fee-reserve balance, then the
// slippage-gated deposit.
func (c *Cycle) openDecision(ctx context.Context) {
	ok, reason := c.bot.ledger.CanOpenNewPosition()
	if !ok {
		c.bot.logger.Printf("Purchase skipped: %s", reason)
		return
	}

	if last := c.bot.ledger.LastPurchaseAt(); !last.IsZero() {
		interval := c.bot.config.GetPurchaseInterval()
		elapsed := c.bot.clock.Now().Sub(last)
		if elapsed < interval {
			c.bot.logger.Printf("Next purchase in %s (interval %s)",
				(interval - elapsed).Round(time.Minute), interval)
			return
		}
	}

	observed, err := retry.Do(ctx, c.bot.executor, "price fetch", c.bot.gateway.CurrentPrice)
	if err != nil {
		c.bot.logger.Printf("Purchase skipped: %v", err)
		return
	}

	if maxEntry := c.bot.config.Strategy.MaxEntryPrice; maxEntry > 0 && observed > maxEntry {
		// Skip this cycle only: the ceiling is re-evaluated next tick,
		// it never latches like the cap does.
		c.bot.logger.Printf("Purchase skipped: price too high: %.6f > %.6f", observed, maxEntry)
		return
	}

	amount := c.bot.config.Strategy.PurchaseAmount
	balance, err := retry.Do(ctx, c.bot.executor, "balance fetch", c.bot.gateway.AvailableBalance)
	if err != nil {
		c.bot.logger.Printf("Purchase skipped: %v", err)
		return
	}
	reserve := c.bot.config.Risk.FeeReserveAmount
	available := balance - reserve
	if available < 0 {
		available = 0
	}
	if available < amount {
		c.bot.logger.Printf("Insufficient balance for purchase: %.4f available (balance %.4f, fee reserve %.4f, need %.4f)",
			available, balance, reserve, amount)
		return
	}

	// Re-fetch immediately before the deposit; the guard never trusts
	// the price that triggered the decision earlier in the cycle.
	fresh, err := retry.Do(ctx, c.bot.executor, "pre-deposit price fetch", c.bot.gateway.CurrentPrice)
	if err != nil {
		c.bot.logger.Printf("Purchase skipped: %v", err)
		return
	}

	check := slippage.Validate(observed, fresh, slippage.Buy,
		c.bot.config.Risk.MaxSlippagePct, c.bot.config.Risk.PriceToleranceBandPct)
	if !check.Allowed {
		c.bot.logger.Printf("Purchase skipped due to slippage: %s", check.Reason)
		return
	}

	tag := "stake-" + uuid.New().String()
	err = retry.DoVoid(ctx, c.bot.executor, "deposit", func(ctx context.Context) error {
		return c.bot.gateway.Deposit(ctx, amount, tag)
	})
	if err != nil {
		c.bot.logger.Printf("Purchase failed: %v", err)
		return
	}

	pos, err := c.bot.ledger.OpenPosition(amount, check.Price, c.bot.config.Strategy.ProfitTargetFraction)
	if err != nil {
		// The deposit succeeded; a ledger refusal here is a caller bug.
		c.bot.logger.Printf("ERROR: deposit executed but ledger rejected open: %v", err)
		return
	}

	c.bot.logger.Printf("Position #%d opened: %.4f @ %.6f -> %.6f asset units, target %.6f, committed %.4f/%.1f",
		pos.ID, pos.CapitalCommitted, pos.EntryPrice, pos.AssetAmount, pos.TargetPrice,
		c.bot.ledger.TotalCommitted(), c.bot.config.Strategy.InvestmentCap)
	c.persist()
}

// closeScan evaluates every active position against one shared price
// fetch, then guards each actual withdrawal with a fresh fetch. One
// position's failure never blocks the rest of the scan.
func (c *Cycle) closeScan(ctx context.Context) {
	positions := c.bot.ledger.ActivePositions()
	if len(positions) == 0 {
		return
	}

	scanPrice, err := retry.Do(ctx, c.bot.executor, "scan price fetch", c.bot.gateway.CurrentPrice)
	if err != nil {
		c.bot.logger.Printf("Close scan skipped: %v", err)
		return
	}

	for i := range positions {
		pos := &positions[i]
		trigger, triggered := c.closeTrigger(pos, scanPrice)
		if !triggered {
			continue
		}
		c.bot.logger.Printf("Position #%d %s: scan price %.6f (entry %.6f, target %.6f)",
			pos.ID, trigger, scanPrice, pos.EntryPrice, pos.TargetPrice)
		c.executeClose(ctx, pos, scanPrice)
	}
}

func (c *Cycle) closeTrigger(pos *ledger.Position, price float64) (string, bool) {
	if price >= pos.TargetPrice {
		return "hit profit target", true
	}
	if f := c.bot.config.Strategy.StopLossFraction; f > 0 && price <= pos.StopLossPrice(f) {
		return "hit stop-loss", true
	}
	return "", false
}

func (c *Cycle) executeClose(ctx context.Context, pos *ledger.Position, scanPrice float64) {
	fresh, err := retry.Do(ctx, c.bot.executor, fmt.Sprintf("pre-withdraw price fetch #%d", pos.ID), c.bot.gateway.CurrentPrice)
	if err != nil {
		c.bot.logger.Printf("Close of position #%d skipped: %v", pos.ID, err)
		return
	}

	check := slippage.Validate(scanPrice, fresh, slippage.Sell,
		c.bot.config.Risk.MaxSlippagePct, c.bot.config.Risk.PriceToleranceBandPct)
	if !check.Allowed {
		c.bot.logger.Printf("Close of position #%d skipped due to slippage: %s", pos.ID, check.Reason)
		return
	}

	tag := "unstake-" + uuid.New().String()
	err = retry.DoVoid(ctx, c.bot.executor, fmt.Sprintf("withdraw #%d", pos.ID), func(ctx context.Context) error {
		return c.bot.gateway.Withdraw(ctx, pos.AssetAmount, tag)
	})
	if err != nil {
		c.bot.logger.Printf("Failed to close position #%d: %v", pos.ID, err)
		if recErr := c.bot.ledger.RecordFailedClose(pos.ID); recErr != nil {
			c.bot.logger.Printf("ERROR: recording failed close: %v", recErr)
		}
		c.persist()
		return
	}

	closed, err := c.bot.ledger.ClosePosition(pos.ID, check.Price)
	if err != nil {
		if errors.Is(err, ledger.ErrPositionNotFound) {
			// Withdrawal executed for a position the ledger no longer
			// tracks; scheduling contract was violated upstream.
			c.bot.logger.Printf("ERROR: withdrawal executed for unknown position #%d: %v", pos.ID, err)
			return
		}
		c.bot.logger.Printf("ERROR: closing position #%d: %v", pos.ID, err)
		return
	}

	c.bot.logger.Printf("Position #%d closed: %.6f asset units @ %.6f, returned %.4f, profit %.4f (%.2f%%)",
		closed.ID, closed.AssetAmount, closed.ExitPrice, closed.CapitalReturned,
		closed.RealizedProfit, closed.RealizedProfitFraction*100)
	c.persist()
}

// persist snapshots the ledger to durable storage. Persistence failure
// is a warning, never fatal: the in-memory ledger stays authoritative
// for the rest of the run and the next mutation retries the write.
func (c *Cycle) persist() {
	if err := c.bot.storage.SaveSnapshot(c.bot.ledger.Snapshot()); err != nil {
		c.bot.logger.Printf("Warning: could not save state: %v", err)
	}
}

// report logs the per-tick status summary.
func (c *Cycle) report() {
	stats := c.bot.ledger.Stats()
	progress := 0.0
	if stats.InvestmentCap > 0 {
		progress = stats.TotalCommitted / stats.InvestmentCap * 100
	}
	c.bot.logger.Printf("Status: committed %.4f/%.1f (%.1f%%), active %d, completed %d, realized profit %.4f",
		stats.TotalCommitted, stats.InvestmentCap, progress,
		stats.ActiveCount, stats.ClosedCount, stats.RealizedProfitTotal)
	if attempts := stats.SuccessfulCloses + stats.FailedCloseAttempts; attempts > 0 {
		c.bot.logger.Printf("Status: success rate %.1f%% (%d/%d close attempts)",
			c.bot.ledger.SuccessRate()*100, stats.SuccessfulCloses, attempts)
	}
}
