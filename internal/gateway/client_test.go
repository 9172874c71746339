package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewClientWithHTTP(srv.URL, "test-key", 73, "validator-hotkey", srv.Client())
	return client, srv
}

func TestCurrentPrice(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subnet/price" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("netuid"); got != "73" {
			t.Errorf("netuid param = %q, want 73", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(priceResponse{Netuid: 73, Price: 0.004217})
	}))
	defer srv.Close()

	price, err := client.CurrentPrice(context.Background())
	if err != nil {
		t.Fatalf("CurrentPrice: %v", err)
	}
	if price != 0.004217 {
		t.Errorf("price = %v, want 0.004217", price)
	}
}

func TestCurrentPrice_RejectsNonPositive(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(priceResponse{Netuid: 73, Price: 0})
	}))
	defer srv.Close()

	if _, err := client.CurrentPrice(context.Background()); err == nil {
		t.Fatalf("zero price accepted")
	}
}

func TestAvailableBalance(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wallet/balance" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(balanceResponse{Free: 12.5})
	}))
	defer srv.Close()

	balance, err := client.AvailableBalance(context.Background())
	if err != nil {
		t.Fatalf("AvailableBalance: %v", err)
	}
	if balance != 12.5 {
		t.Errorf("balance = %v, want 12.5", balance)
	}
}

func TestHoldingsBalance(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("validator"); got != "validator-hotkey" {
			t.Errorf("validator param = %q", got)
		}
		_ = json.NewEncoder(w).Encode(stakeResponse{Netuid: 73, Validator: "validator-hotkey", Stake: 47.3})
	}))
	defer srv.Close()

	stake, err := client.HoldingsBalance(context.Background())
	if err != nil {
		t.Fatalf("HoldingsBalance: %v", err)
	}
	if stake != 47.3 {
		t.Errorf("stake = %v, want 47.3", stake)
	}
}

func TestDeposit_SendsTradeRequest(t *testing.T) {
	var got tradeRequest
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/stake/add" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(tradeResponse{Accepted: true})
	}))
	defer srv.Close()

	if err := client.Deposit(context.Background(), 0.05, "stake-abc"); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	want := tradeRequest{Netuid: 73, Validator: "validator-hotkey", Amount: 0.05, ClientTag: "stake-abc"}
	if got != want {
		t.Errorf("request = %+v, want %+v", got, want)
	}
}

func TestWithdraw_RefusalWrapsErrRejected(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stake/remove" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(tradeResponse{Accepted: false, Reason: "insufficient stake"})
	}))
	defer srv.Close()

	err := client.Withdraw(context.Background(), 0.05, "unstake-abc")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want wrapped ErrRejected", err)
	}
	if !strings.Contains(err.Error(), "insufficient stake") {
		t.Errorf("err = %q, want backend reason in message", err)
	}
	if IsTransient(err) {
		t.Errorf("refusal classified as transient")
	}
}

func TestDo_HTTPStatusClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRejected  bool
		wantTransient bool
	}{
		{"bad request", http.StatusBadRequest, true, false},
		{"unauthorized", http.StatusUnauthorized, true, false},
		{"rate limited", http.StatusTooManyRequests, false, true},
		{"server error", http.StatusInternalServerError, false, true},
		{"bad gateway", http.StatusBadGateway, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, tt.name, tt.status)
			}))
			defer srv.Close()

			_, err := client.AvailableBalance(context.Background())
			if err == nil {
				t.Fatalf("status %d returned no error", tt.status)
			}
			if got := errors.Is(err, ErrRejected); got != tt.wantRejected {
				t.Errorf("errors.Is(err, ErrRejected) = %v, want %v (err: %v)", got, tt.wantRejected, err)
			}
			if got := IsTransient(err); got != tt.wantTransient {
				t.Errorf("IsTransient = %v, want %v (err: %v)", got, tt.wantTransient, err)
			}
		})
	}
}

func TestDo_APIErrorCarriesStatusAndBody(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream flaked", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := client.AvailableBalance(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want 503", apiErr.Status)
	}
	if !strings.Contains(apiErr.Body, "upstream flaked") {
		t.Errorf("Body = %q", apiErr.Body)
	}
}
