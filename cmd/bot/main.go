package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/schrute_bucks/internal/config"
	"github.com/eddiefleurent/schrute_bucks/internal/gateway"
	"github.com/eddiefleurent/schrute_bucks/internal/ledger"
	"github.com/eddiefleurent/schrute_bucks/internal/retry"
	"github.com/eddiefleurent/schrute_bucks/internal/statusapi"
	"github.com/eddiefleurent/schrute_bucks/internal/storage"
	"github.com/eddiefleurent/schrute_bucks/internal/util"
)

// holdingsDriftEpsilon bounds how far gateway-reported holdings may
// diverge from ledger-tracked holdings before we warn at startup.
const holdingsDriftEpsilon = 1e-6

// Bot wires the scheduler's collaborators together.
type Bot struct {
	config    *config.Config
	logger    *log.Logger
	gateway   gateway.Gateway
	executor  *retry.Executor
	ledger    *ledger.Ledger
	storage   storage.Interface
	clock     util.Clock
	startTime time.Time
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := log.New(os.Stdout, "[BOT] ", log.LstdFlags)

	bot, err := newBot(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize bot: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Println("Shutdown signal received, stopping bot...")
		cancel()
	}()

	bot.logStartupBanner()
	bot.logInitialStatus(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx) })

	if cfg.Status.Enabled {
		srv := statusapi.NewServer(statusapi.Config{
			ListenAddr:    cfg.Status.ListenAddr,
			InvestmentCap: cfg.Strategy.InvestmentCap,
		}, bot.storage, newStatusLogger(cfg.Environment.LogLevel))
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("Bot error: %v", err)
	}

	bot.logSessionSummary()
	logger.Println("Bot stopped")
}

func newBot(cfg *config.Config, logger *log.Logger) (*Bot, error) {
	client := gateway.NewClient(
		cfg.Gateway.Endpoint,
		cfg.Gateway.APIKey,
		cfg.Gateway.Netuid,
		cfg.Gateway.Validator,
	).WithTimeout(cfg.GetGatewayTimeout())

	store, err := storage.NewStore(cfg.Storage.Path, cfg.Operator.Name)
	if err != nil {
		return nil, fmt.Errorf("initializing state store: %w", err)
	}

	clock := util.RealClock{}
	led := ledger.New(ledger.Config{
		InvestmentCap:          cfg.Strategy.InvestmentCap,
		CapTolerance:           cfg.CapTolerance(),
		MaxConcurrentPositions: cfg.Strategy.MaxConcurrentPositions,
	}, clock)

	snap, err := store.LoadSnapshot()
	switch {
	case errors.Is(err, storage.ErrNoState):
		logger.Println("No previous state, starting fresh")
	case err != nil:
		return nil, fmt.Errorf("loading state: %w", err)
	default:
		if err := led.Restore(snap); err != nil {
			return nil, fmt.Errorf("restoring state: %w", err)
		}
		logger.Printf("Loaded previous state: %d active positions, %d completed, %.4f committed",
			len(snap.ActivePositions), len(snap.ClosedPositions), snap.TotalCommitted)
	}

	return &Bot{
		config:    cfg,
		logger:    logger,
		gateway:   gateway.NewCircuitBreakerGateway(client),
		executor:  retry.NewExecutor(logger, retry.Config{MaxAttempts: cfg.Retry.MaxAttempts, Backoff: cfg.GetRetryBackoff()}),
		ledger:    led,
		storage:   store,
		clock:     clock,
		startTime: clock.Now(),
	}, nil
}

// Run drives the tick loop. The first cycle runs immediately; the
// interval sleep honors cancellation so shutdown never waits out a
// full tick.
func (b *Bot) Run(ctx context.Context) error {
	cycle := NewCycle(b)
	ticker := time.NewTicker(b.config.GetCheckInterval())
	defer ticker.Stop()

	cycle.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cycle.Run(ctx)
		}
	}
}

func (b *Bot) logStartupBanner() {
	cfg := b.config
	b.logger.Printf("Starting micro-grid bot for operator %q on netuid %d", cfg.Operator.Name, cfg.Gateway.Netuid)
	b.logger.Printf("  Purchase: %.4f every %.1fh, profit target +%.1f%%",
		cfg.Strategy.PurchaseAmount, cfg.Strategy.PurchaseIntervalHours, cfg.Strategy.ProfitTargetFraction*100)
	b.logger.Printf("  Investment cap: %.4f (tolerance %.4f), max %d concurrent positions",
		cfg.Strategy.InvestmentCap, cfg.CapTolerance(), cfg.Strategy.MaxConcurrentPositions)
	if cfg.Strategy.MaxEntryPrice > 0 {
		b.logger.Printf("  Max entry price: %.6f", cfg.Strategy.MaxEntryPrice)
	}
	if cfg.Strategy.StopLossFraction > 0 {
		b.logger.Printf("  Stop-loss: -%.1f%%", cfg.Strategy.StopLossFraction*100)
	}
	b.logger.Printf("  Slippage: max %.2f%%, tolerance band %.2f%%, fee reserve %.4f",
		cfg.Risk.MaxSlippagePct, cfg.Risk.PriceToleranceBandPct, cfg.Risk.FeeReserveAmount)
	b.logger.Printf("  Check interval: %s", cfg.GetCheckInterval())
}

// logInitialStatus reports wallet balance and reconciles gateway
// holdings against what the restored ledger believes it holds.
func (b *Bot) logInitialStatus(ctx context.Context) {
	balance, err := retry.Do(ctx, b.executor, "startup balance fetch", b.gateway.AvailableBalance)
	if err != nil {
		b.logger.Printf("Warning: could not fetch starting balance: %v", err)
	} else {
		b.logger.Printf("Starting wallet balance: %.4f", balance)
	}

	holdings, err := retry.Do(ctx, b.executor, "startup holdings fetch", b.gateway.HoldingsBalance)
	if err != nil {
		b.logger.Printf("Warning: could not fetch current holdings: %v", err)
		return
	}
	tracked := b.ledger.TotalAssetAmount()
	b.logger.Printf("Current holdings: %.6f asset units (ledger tracks %.6f)", holdings, tracked)
	if math.Abs(holdings-tracked) > holdingsDriftEpsilon {
		b.logger.Printf("Warning: gateway holdings diverge from ledger by %.6f; positions may have been changed outside this bot",
			holdings-tracked)
	}
}

func (b *Bot) logSessionSummary() {
	stats := b.ledger.Stats()
	duration := b.clock.Now().Sub(b.startTime).Round(time.Second)

	b.logger.Println("Session summary:")
	b.logger.Printf("  Duration: %s", duration)
	b.logger.Printf("  Committed: %.4f/%.1f", stats.TotalCommitted, stats.InvestmentCap)
	b.logger.Printf("  Active positions: %d, completed: %d", stats.ActiveCount, stats.ClosedCount)
	b.logger.Printf("  Realized profit: %.4f", stats.RealizedProfitTotal)

	closed := b.ledger.ClosedPositions()
	if len(closed) > 0 {
		var fractionSum float64
		for i := range closed {
			fractionSum += closed[i].RealizedProfitFraction
		}
		b.logger.Printf("  Average realized profit: %.2f%%", fractionSum/float64(len(closed))*100)
		b.logger.Printf("  Success rate: %.1f%%", b.ledger.SuccessRate()*100)
	}

	for _, pos := range tail(b.ledger.ActivePositions(), 10) {
		b.logger.Printf("  Active #%d | entry %.6f | target %.6f | opened %s",
			pos.ID, pos.EntryPrice, pos.TargetPrice, pos.CreatedAt.Format("2006-01-02 15:04"))
	}
	for _, pos := range tail(closed, 5) {
		b.logger.Printf("  Closed #%d | profit %.4f (%.2f%%)",
			pos.ID, pos.RealizedProfit, pos.RealizedProfitFraction*100)
	}
}

// tail returns the last n elements of positions.
func tail(positions []ledger.Position, n int) []ledger.Position {
	if len(positions) <= n {
		return positions
	}
	return positions[len(positions)-n:]
}

func newStatusLogger(level string) *logrus.Logger {
	l := logrus.New()
	if parsed, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(parsed)
	}
	return l
}
