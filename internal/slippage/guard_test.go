package slippage

import (
	"math"
	"testing"
)

func TestValidate_SlippageBound(t *testing.T) {
	tests := []struct {
		name        string
		observed    float64
		fresh       float64
		direction   Direction
		maxSlippage float64
		band        float64
		wantAllowed bool
		wantPrice   float64
	}{
		{
			name:        "3 percent move rejected at 2 percent bound",
			observed:    1.0,
			fresh:       1.03,
			direction:   Buy,
			maxSlippage: 2.0,
			band:        5.0,
			wantAllowed: false,
		},
		{
			name:        "1 percent move accepted, fresh price returned",
			observed:    1.0,
			fresh:       1.01,
			direction:   Buy,
			maxSlippage: 2.0,
			band:        5.0,
			wantAllowed: true,
			wantPrice:   1.01,
		},
		{
			name:        "downward move within bound accepted for buy",
			observed:    1.0,
			fresh:       0.99,
			direction:   Buy,
			maxSlippage: 2.0,
			band:        1.0,
			wantAllowed: true,
			wantPrice:   0.99,
		},
		{
			name:        "sell accepts upward move",
			observed:    1.0,
			fresh:       1.015,
			direction:   Sell,
			maxSlippage: 2.0,
			band:        1.0,
			wantAllowed: true,
			wantPrice:   1.015,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.observed, tt.fresh, tt.direction, tt.maxSlippage, tt.band)
			if got.Allowed != tt.wantAllowed {
				t.Fatalf("Allowed = %v, want %v (reason: %s)", got.Allowed, tt.wantAllowed, got.Reason)
			}
			if tt.wantAllowed && math.Abs(got.Price-tt.wantPrice) > 1e-12 {
				t.Errorf("Price = %v, want %v", got.Price, tt.wantPrice)
			}
			if !tt.wantAllowed && got.Reason == "" {
				t.Errorf("rejected result carries no reason")
			}
		})
	}
}

func TestValidate_DirectionalTolerance(t *testing.T) {
	// 1.5% rise is within a 2% slippage bound but beyond a 1% buy band.
	got := Validate(1.0, 1.015, Buy, 2.0, 1.0)
	if got.Allowed {
		t.Fatalf("expected rejection for buy-side rise beyond tolerance band")
	}

	// Mirror case: 1.5% drop beyond a 1% sell band.
	got = Validate(1.0, 0.985, Sell, 2.0, 1.0)
	if got.Allowed {
		t.Fatalf("expected rejection for sell-side drop beyond tolerance band")
	}
}

func TestValidate_InvalidInputs(t *testing.T) {
	if got := Validate(0, 1.0, Buy, 2.0, 1.0); got.Allowed {
		t.Errorf("zero observed price must be rejected")
	}
	if got := Validate(1.0, -1, Sell, 2.0, 1.0); got.Allowed {
		t.Errorf("negative fresh price must be rejected")
	}
	if got := Validate(1.0, 1.0, Direction("hold"), 2.0, 1.0); got.Allowed {
		t.Errorf("unknown direction must be rejected")
	}
}
