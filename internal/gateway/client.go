package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client talks to a subtensor sidecar's REST API. All methods return
// *APIError for non-2xx responses; trade submissions the backend
// definitively refuses wrap ErrRejected.
type Client struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	netuid   int
	validatr string
}

// NewClient creates a gateway client for the given sidecar endpoint.
// netuid selects the subnet, validator the hotkey positions are staked
// with.
func NewClient(baseURL, apiKey string, netuid int, validator string) *Client {
	return NewClientWithHTTP(baseURL, apiKey, netuid, validator, nil)
}

// NewClientWithHTTP creates a gateway client with a custom HTTP client,
// primarily for tests against httptest servers.
func NewClientWithHTTP(baseURL, apiKey string, netuid int, validator string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		client:   httpClient,
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		netuid:   netuid,
		validatr: validator,
	}
}

// WithTimeout sets the HTTP timeout and returns the client.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.client.Timeout = timeout
	}
	return c
}

type priceResponse struct {
	Netuid int     `json:"netuid"`
	Price  float64 `json:"price"`
}

type balanceResponse struct {
	Free float64 `json:"free"`
}

type stakeResponse struct {
	Netuid    int     `json:"netuid"`
	Validator string  `json:"validator"`
	Stake     float64 `json:"stake"`
}

type tradeRequest struct {
	Netuid    int     `json:"netuid"`
	Validator string  `json:"validator"`
	Amount    float64 `json:"amount"`
	ClientTag string  `json:"client_tag"`
}

type tradeResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// CurrentPrice implements Gateway.
func (c *Client) CurrentPrice(ctx context.Context) (float64, error) {
	var resp priceResponse
	params := url.Values{"netuid": []string{strconv.Itoa(c.netuid)}}
	if err := c.get(ctx, "/subnet/price", params, &resp); err != nil {
		return 0, fmt.Errorf("fetching price: %w", err)
	}
	if resp.Price <= 0 {
		return 0, fmt.Errorf("gateway returned non-positive price %.9f for netuid %d", resp.Price, resp.Netuid)
	}
	return resp.Price, nil
}

// AvailableBalance implements Gateway.
func (c *Client) AvailableBalance(ctx context.Context) (float64, error) {
	var resp balanceResponse
	if err := c.get(ctx, "/wallet/balance", nil, &resp); err != nil {
		return 0, fmt.Errorf("fetching balance: %w", err)
	}
	return resp.Free, nil
}

// HoldingsBalance implements Gateway.
func (c *Client) HoldingsBalance(ctx context.Context) (float64, error) {
	var resp stakeResponse
	params := url.Values{
		"netuid":    []string{strconv.Itoa(c.netuid)},
		"validator": []string{c.validatr},
	}
	if err := c.get(ctx, "/wallet/stake", params, &resp); err != nil {
		return 0, fmt.Errorf("fetching holdings: %w", err)
	}
	return resp.Stake, nil
}

// Deposit implements Gateway.
func (c *Client) Deposit(ctx context.Context, amount float64, clientTag string) error {
	if err := c.trade(ctx, "/stake/add", amount, clientTag); err != nil {
		return fmt.Errorf("deposit of %.6f: %w", amount, err)
	}
	return nil
}

// Withdraw implements Gateway.
func (c *Client) Withdraw(ctx context.Context, amount float64, clientTag string) error {
	if err := c.trade(ctx, "/stake/remove", amount, clientTag); err != nil {
		return fmt.Errorf("withdrawal of %.6f: %w", amount, err)
	}
	return nil
}

func (c *Client) trade(ctx context.Context, path string, amount float64, clientTag string) error {
	body, err := json.Marshal(tradeRequest{
		Netuid:    c.netuid,
		Validator: c.validatr,
		Amount:    amount,
		ClientTag: clientTag,
	})
	if err != nil {
		return fmt.Errorf("encoding trade request: %w", err)
	}

	var resp tradeResponse
	if err := c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(body), &resp); err != nil {
		return err
	}
	if !resp.Accepted {
		return fmt.Errorf("%w: %s", ErrRejected, resp.Reason)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body io.Reader, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		// 4xx other than 429 means the backend understood and refused.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
			return fmt.Errorf("%w: %s", ErrRejected, apiErr.Error())
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Ensure Client implements Gateway at compile time.
var _ Gateway = (*Client)(nil)
