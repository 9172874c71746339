package main

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/schrute_bucks/internal/config"
	"github.com/eddiefleurent/schrute_bucks/internal/gateway"
	"github.com/eddiefleurent/schrute_bucks/internal/ledger"
	"github.com/eddiefleurent/schrute_bucks/internal/storage"
)

func bootConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testConfig()
	cfg.Gateway.Endpoint = "http://127.0.0.1:9944/v1"
	cfg.Gateway.Netuid = 73
	cfg.Gateway.Validator = "validator-hotkey"
	cfg.Gateway.Timeout = "30s"
	cfg.Storage.Path = t.TempDir()
	return cfg
}

func TestNewBot_FreshState(t *testing.T) {
	bot, err := newBot(bootConfig(t), log.New(io.Discard, "", 0))
	require.NoError(t, err)

	assert.Empty(t, bot.ledger.ActivePositions())
	assert.Zero(t, bot.ledger.TotalCommitted())
}

func TestNewBot_RestoresState(t *testing.T) {
	cfg := bootConfig(t)

	store, err := storage.NewStore(cfg.Storage.Path, cfg.Operator.Name)
	require.NoError(t, err)
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveSnapshot(ledger.Snapshot{
		TotalCommitted: 0.05,
		NextPositionID: 2,
		LastPurchaseAt: created,
		ActivePositions: []ledger.Position{{
			ID: 1, EntryPrice: 1.0, TargetPrice: 1.15, AssetAmount: 0.05,
			CapitalCommitted: 0.05, Status: ledger.StatusActive, CreatedAt: created,
		}},
	}))

	bot, err := newBot(cfg, log.New(io.Discard, "", 0))
	require.NoError(t, err)

	active := bot.ledger.ActivePositions()
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].ID)
	assert.InDelta(t, 0.05, bot.ledger.TotalCommitted(), 1e-12)
	assert.True(t, bot.ledger.LastPurchaseAt().Equal(created))
}

func TestNewBot_RejectsCorruptState(t *testing.T) {
	cfg := bootConfig(t)

	store, err := storage.NewStore(cfg.Storage.Path, cfg.Operator.Name)
	require.NoError(t, err)
	// Running total disagrees with the (empty) active set.
	require.NoError(t, store.SaveSnapshot(ledger.Snapshot{
		TotalCommitted: 1.0,
		NextPositionID: 1,
	}))

	_, err = newBot(cfg, log.New(io.Discard, "", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restoring state")
}

func TestRun_StopsOnCancel(t *testing.T) {
	gw := gateway.NewMockGateway(1.0, 10.0)
	h := newTestHarness(t, testConfig(), gw)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Run must return promptly after the first cycle instead of waiting
	// out a full tick.
	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx) }()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancellation")
	}
}

func TestTail(t *testing.T) {
	positions := []ledger.Position{{ID: 1}, {ID: 2}, {ID: 3}}

	got := tail(positions, 2)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)

	assert.Len(t, tail(positions, 5), 3)
	assert.Empty(t, tail(nil, 5))
}
