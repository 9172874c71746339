package ledger

import (
	"math"
	"strings"
	"testing"
	"time"
)

func validActive() Position {
	return Position{
		ID:               1,
		EntryPrice:       1.0,
		TargetPrice:      1.15,
		AssetAmount:      0.05,
		CapitalCommitted: 0.05,
		Status:           StatusActive,
		CreatedAt:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func validClosed() Position {
	p := validActive()
	p.Status = StatusClosed
	p.ExitPrice = 1.16
	p.CapitalReturned = 0.058
	p.RealizedProfit = 0.008
	p.RealizedProfitFraction = 0.16
	p.ClosedAt = p.CreatedAt.Add(36 * time.Hour)
	return p
}

func TestPositionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Position)
		base    Position
		wantErr string
	}{
		{name: "valid active", base: validActive(), mutate: func(*Position) {}},
		{name: "valid closed", base: validClosed(), mutate: func(*Position) {}},
		{
			name: "unknown status", base: validActive(),
			mutate:  func(p *Position) { p.Status = "pending" },
			wantErr: "unknown status",
		},
		{
			name: "non-positive id", base: validActive(),
			mutate:  func(p *Position) { p.ID = 0 },
			wantErr: "id must be positive",
		},
		{
			name: "zero entry price", base: validActive(),
			mutate:  func(p *Position) { p.EntryPrice = 0 },
			wantErr: "entry price",
		},
		{
			name: "zero created at", base: validActive(),
			mutate:  func(p *Position) { p.CreatedAt = time.Time{} },
			wantErr: "created-at",
		},
		{
			name: "active with exit price", base: validActive(),
			mutate:  func(p *Position) { p.ExitPrice = 1.16 },
			wantErr: "must not carry close fields",
		},
		{
			name: "active with closed at", base: validActive(),
			mutate:  func(p *Position) { p.ClosedAt = p.CreatedAt.Add(time.Hour) },
			wantErr: "must not carry close fields",
		},
		{
			name: "closed without exit price", base: validClosed(),
			mutate:  func(p *Position) { p.ExitPrice = 0 },
			wantErr: "missing exit price",
		},
		{
			name: "closed without closed at", base: validClosed(),
			mutate:  func(p *Position) { p.ClosedAt = time.Time{} },
			wantErr: "missing closed-at",
		},
		{
			name: "closed before created", base: validClosed(),
			mutate:  func(p *Position) { p.ClosedAt = p.CreatedAt.Add(-time.Hour) },
			wantErr: "precedes created-at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := tt.base
			tt.mutate(&pos)
			err := pos.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestStopLossPrice(t *testing.T) {
	pos := validActive()
	if got := pos.StopLossPrice(0.3); math.Abs(got-0.7) > 1e-12 {
		t.Errorf("StopLossPrice(0.3) = %v, want 0.7", got)
	}
	if got := pos.StopLossPrice(0); got != pos.EntryPrice {
		t.Errorf("StopLossPrice(0) = %v, want entry price", got)
	}
}

func TestPositionStatusValid(t *testing.T) {
	if !StatusActive.Valid() || !StatusClosed.Valid() {
		t.Errorf("defined statuses reported invalid")
	}
	if PositionStatus("pending").Valid() {
		t.Errorf("undefined status reported valid")
	}
}
