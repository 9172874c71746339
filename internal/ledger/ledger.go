// Package ledger owns the set of positions and the running investment
// totals. It performs no I/O: callers execute the actual deposit or
// withdrawal first and mutate the ledger only after the gateway has
// confirmed success.
package ledger

import (
	"fmt"
	"time"

	"github.com/eddiefleurent/schrute_bucks/internal/util"
)

// Config holds the cap and sizing parameters the ledger enforces.
type Config struct {
	// InvestmentCap is the ceiling on capital simultaneously committed
	// across all active positions.
	InvestmentCap float64
	// CapTolerance is the hysteresis band around the cap. Once opens
	// pause, they resume only after total committed drops below
	// InvestmentCap - CapTolerance.
	CapTolerance float64
	// MaxConcurrentPositions limits the number of active positions.
	MaxConcurrentPositions int
}

// Ledger is the process-wide aggregate of position state. It is not
// goroutine-safe: the scheduler is the single stream of control, and a
// concurrent extension must own a disjoint Ledger per asset.
type Ledger struct {
	cfg   Config
	clock util.Clock

	totalCommitted      float64
	realizedProfitTotal float64
	successfulCloses    int
	failedCloseAttempts int
	nextPositionID      int64
	lastPurchaseAt      time.Time
	capPaused           bool

	active []Position
	closed []Position
}

// Snapshot is the full serializable state of a Ledger, including the
// hysteresis latch so a restart cannot flip the cap gate.
type Snapshot struct {
	TotalCommitted      float64    `json:"total_committed"`
	RealizedProfitTotal float64    `json:"realized_profit_total"`
	SuccessfulCloses    int        `json:"successful_closes"`
	FailedCloseAttempts int        `json:"failed_close_attempts"`
	NextPositionID      int64      `json:"next_position_id"`
	LastPurchaseAt      time.Time  `json:"last_purchase_at,omitempty"`
	CapPaused           bool       `json:"cap_paused"`
	ActivePositions     []Position `json:"active_positions"`
	ClosedPositions     []Position `json:"closed_positions"`
}

// capEpsilon absorbs float accumulation error in the running total:
// a ledger within epsilon of the cap is treated as at the cap.
const capEpsilon = 1e-9

// Stats is the aggregate view reported each tick.
type Stats struct {
	TotalCommitted      float64   `json:"total_committed"`
	InvestmentCap       float64   `json:"investment_cap"`
	RealizedProfitTotal float64   `json:"realized_profit_total"`
	SuccessfulCloses    int       `json:"successful_closes"`
	FailedCloseAttempts int       `json:"failed_close_attempts"`
	ActiveCount         int       `json:"active_count"`
	ClosedCount         int       `json:"closed_count"`
	LastPurchaseAt      time.Time `json:"last_purchase_at,omitempty"`
}

// New creates an empty ledger. IDs start at 1.
func New(cfg Config, clock util.Clock) *Ledger {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Ledger{
		cfg:            cfg,
		clock:          clock,
		nextPositionID: 1,
		active:         make([]Position, 0),
		closed:         make([]Position, 0),
	}
}

// CanOpenNewPosition reports whether the cap and position-count gates
// allow a new purchase, with a human-readable reason when they do not.
//
// The cap check uses hysteresis: opens pause once total committed
// reaches the cap and resume only after it drops below cap - tolerance.
// This prevents the gate from oscillating when closes and opens trade
// places at the boundary.
func (l *Ledger) CanOpenNewPosition() (bool, string) {
	if l.capPaused {
		if l.totalCommitted < l.cfg.InvestmentCap-l.cfg.CapTolerance {
			l.capPaused = false
		} else {
			return false, fmt.Sprintf("investment cap paused: %.4f committed, resumes below %.4f",
				l.totalCommitted, l.cfg.InvestmentCap-l.cfg.CapTolerance)
		}
	}
	if l.totalCommitted >= l.cfg.InvestmentCap-capEpsilon {
		l.capPaused = true
		return false, fmt.Sprintf("investment cap reached: %.4f/%.4f committed",
			l.totalCommitted, l.cfg.InvestmentCap)
	}
	if l.cfg.MaxConcurrentPositions > 0 && len(l.active) >= l.cfg.MaxConcurrentPositions {
		return false, fmt.Sprintf("max positions reached (%d)", l.cfg.MaxConcurrentPositions)
	}
	return true, ""
}

// OpenPosition records a purchase that has already succeeded at the
// gateway. It assigns the next id, derives the asset amount and target
// price from the entry price, and moves the aggregates.
func (l *Ledger) OpenPosition(capitalAmount, entryPrice, profitTargetFraction float64) (*Position, error) {
	if capitalAmount <= 0 || entryPrice <= 0 || profitTargetFraction <= 0 {
		return nil, fmt.Errorf("%w: open(capital=%.6f, entry=%.6f, target=%.4f)",
			ErrInvalidArgument, capitalAmount, entryPrice, profitTargetFraction)
	}

	pos := Position{
		ID:               l.nextPositionID,
		EntryPrice:       entryPrice,
		TargetPrice:      entryPrice * (1 + profitTargetFraction),
		AssetAmount:      capitalAmount / entryPrice,
		CapitalCommitted: capitalAmount,
		Status:           StatusActive,
		CreatedAt:        l.clock.Now(),
	}
	l.nextPositionID++
	l.active = append(l.active, pos)
	l.totalCommitted += capitalAmount
	l.lastPurchaseAt = pos.CreatedAt
	return &pos, nil
}

// ClosePosition records a withdrawal that has already succeeded at the
// gateway. The transition sets all close-only fields atomically, moves
// the position to the closed set, and updates the aggregates. A second
// close of the same id fails with ErrPositionNotFound.
func (l *Ledger) ClosePosition(id int64, exitPrice float64) (*Position, error) {
	if exitPrice <= 0 {
		return nil, fmt.Errorf("%w: close(id=%d, exit=%.6f)", ErrInvalidArgument, id, exitPrice)
	}
	idx := l.activeIndex(id)
	if idx < 0 {
		return nil, fmt.Errorf("close position %d: %w", id, ErrPositionNotFound)
	}

	pos := l.active[idx]
	pos.Status = StatusClosed
	pos.ExitPrice = exitPrice
	pos.CapitalReturned = pos.AssetAmount * exitPrice
	pos.RealizedProfit = pos.CapitalReturned - pos.CapitalCommitted
	pos.RealizedProfitFraction = pos.RealizedProfit / pos.CapitalCommitted
	pos.ClosedAt = l.clock.Now()

	l.active = append(l.active[:idx], l.active[idx+1:]...)
	l.closed = append(l.closed, pos)
	l.totalCommitted -= pos.CapitalCommitted
	l.realizedProfitTotal += pos.RealizedProfit
	l.successfulCloses++
	return &pos, nil
}

// RecordFailedClose counts a withdrawal that failed at the gateway. The
// position stays active and is eligible for retry on a later cycle.
func (l *Ledger) RecordFailedClose(id int64) error {
	if l.activeIndex(id) < 0 {
		return fmt.Errorf("record failed close %d: %w", id, ErrPositionNotFound)
	}
	l.failedCloseAttempts++
	return nil
}

// LastPurchaseAt returns the timestamp of the most recent successful
// open; the zero time means "never".
func (l *Ledger) LastPurchaseAt() time.Time { return l.lastPurchaseAt }

// TotalCommitted returns capital currently committed across active
// positions.
func (l *Ledger) TotalCommitted() float64 { return l.totalCommitted }

// TotalAssetAmount returns asset units held across active positions.
func (l *Ledger) TotalAssetAmount() float64 {
	var total float64
	for i := range l.active {
		total += l.active[i].AssetAmount
	}
	return total
}

// ActivePositions returns a copy of the active set.
func (l *Ledger) ActivePositions() []Position {
	out := make([]Position, len(l.active))
	copy(out, l.active)
	return out
}

// ClosedPositions returns a copy of the closed set.
func (l *Ledger) ClosedPositions() []Position {
	out := make([]Position, len(l.closed))
	copy(out, l.closed)
	return out
}

// Stats returns the aggregate view for status reporting.
func (l *Ledger) Stats() Stats {
	return Stats{
		TotalCommitted:      l.totalCommitted,
		InvestmentCap:       l.cfg.InvestmentCap,
		RealizedProfitTotal: l.realizedProfitTotal,
		SuccessfulCloses:    l.successfulCloses,
		FailedCloseAttempts: l.failedCloseAttempts,
		ActiveCount:         len(l.active),
		ClosedCount:         len(l.closed),
		LastPurchaseAt:      l.lastPurchaseAt,
	}
}

// SuccessRate returns the fraction of close attempts that succeeded,
// or 0 when no closes have been attempted.
func (l *Ledger) SuccessRate() float64 {
	attempts := l.successfulCloses + l.failedCloseAttempts
	if attempts == 0 {
		return 0
	}
	return float64(l.successfulCloses) / float64(attempts)
}

// Snapshot serializes the full ledger state for the state store.
func (l *Ledger) Snapshot() Snapshot {
	active := make([]Position, len(l.active))
	copy(active, l.active)
	closed := make([]Position, len(l.closed))
	copy(closed, l.closed)
	return Snapshot{
		TotalCommitted:      l.totalCommitted,
		RealizedProfitTotal: l.realizedProfitTotal,
		SuccessfulCloses:    l.successfulCloses,
		FailedCloseAttempts: l.failedCloseAttempts,
		NextPositionID:      l.nextPositionID,
		LastPurchaseAt:      l.lastPurchaseAt,
		CapPaused:           l.capPaused,
		ActivePositions:     active,
		ClosedPositions:     closed,
	}
}

// Restore replaces the ledger contents with a previously taken
// snapshot. Restore(Snapshot(S)) == S for every reachable state.
func (l *Ledger) Restore(snap Snapshot) error {
	for i := range snap.ActivePositions {
		if err := snap.ActivePositions[i].Validate(); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		if snap.ActivePositions[i].Status != StatusActive {
			return fmt.Errorf("restore: position %d in active set has status %q",
				snap.ActivePositions[i].ID, snap.ActivePositions[i].Status)
		}
	}
	for i := range snap.ClosedPositions {
		if err := snap.ClosedPositions[i].Validate(); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		if snap.ClosedPositions[i].Status != StatusClosed {
			return fmt.Errorf("restore: position %d in closed set has status %q",
				snap.ClosedPositions[i].ID, snap.ClosedPositions[i].Status)
		}
	}

	var sum float64
	maxID := int64(0)
	for i := range snap.ActivePositions {
		sum += snap.ActivePositions[i].CapitalCommitted
		if snap.ActivePositions[i].ID > maxID {
			maxID = snap.ActivePositions[i].ID
		}
	}
	for i := range snap.ClosedPositions {
		if snap.ClosedPositions[i].ID > maxID {
			maxID = snap.ClosedPositions[i].ID
		}
	}
	if snap.NextPositionID <= maxID {
		return fmt.Errorf("restore: next position id %d not beyond max assigned id %d",
			snap.NextPositionID, maxID)
	}

	// The running total is a cache of the active set; a snapshot that
	// disagrees with its own positions is corrupt.
	const drift = 1e-9
	if diff := snap.TotalCommitted - sum; diff > drift || diff < -drift {
		return fmt.Errorf("restore: total committed %.9f does not match active positions sum %.9f",
			snap.TotalCommitted, sum)
	}

	l.totalCommitted = snap.TotalCommitted
	l.realizedProfitTotal = snap.RealizedProfitTotal
	l.successfulCloses = snap.SuccessfulCloses
	l.failedCloseAttempts = snap.FailedCloseAttempts
	l.nextPositionID = snap.NextPositionID
	l.lastPurchaseAt = snap.LastPurchaseAt
	l.capPaused = snap.CapPaused

	l.active = make([]Position, len(snap.ActivePositions))
	copy(l.active, snap.ActivePositions)
	l.closed = make([]Position, len(snap.ClosedPositions))
	copy(l.closed, snap.ClosedPositions)
	return nil
}

func (l *Ledger) activeIndex(id int64) int {
	for i := range l.active {
		if l.active[i].ID == id {
			return i
		}
	}
	return -1
}
