package gateway

import (
	"context"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerGateway wraps a Gateway so a run of gateway faults
// short-circuits further calls until the backend recovers. A tripped
// breaker surfaces as a transient error, so the scheduler keeps
// retrying at tick cadence instead of exiting.
type CircuitBreakerGateway struct {
	gateway Gateway
	breaker *gobreaker.CircuitBreaker
}

// BreakerSettings configures the circuit breaker behavior.
type BreakerSettings struct {
	MaxRequests  uint32        // Max requests allowed half-open
	Interval     time.Duration // Window for counting failures
	Timeout      time.Duration // Open duration before half-open probe
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// DefaultBreakerSettings matches one bad tick tripping the breaker
// without a single transient blip doing so.
var DefaultBreakerSettings = BreakerSettings{
	MaxRequests:  1,
	Interval:     2 * time.Minute,
	Timeout:      1 * time.Minute,
	MinRequests:  4,
	FailureRatio: 0.6,
}

// NewCircuitBreakerGateway wraps gw with DefaultBreakerSettings.
func NewCircuitBreakerGateway(gw Gateway) *CircuitBreakerGateway {
	return NewCircuitBreakerGatewayWithSettings(gw, DefaultBreakerSettings)
}

// NewCircuitBreakerGatewayWithSettings wraps gw with custom settings.
func NewCircuitBreakerGatewayWithSettings(gw Gateway, settings BreakerSettings) *CircuitBreakerGateway {
	gbSettings := gobreaker.Settings{
		Name:        "GatewayCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// Definitive refusals are healthy backend behavior and must
			// not open the breaker.
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}
	return &CircuitBreakerGateway{
		gateway: gw,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// execBreaker is a generic helper for the wrapper methods.
func execBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	gw Gateway,
	fn func(Gateway) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(gw) })
	if err != nil {
		return zero, err
	}
	v, ok := res.(T)
	if !ok {
		return zero, nil
	}
	return v, nil
}

// CurrentPrice wraps the underlying gateway call with the breaker.
func (c *CircuitBreakerGateway) CurrentPrice(ctx context.Context) (float64, error) {
	return execBreaker(c.breaker, c.gateway, func(g Gateway) (float64, error) { return g.CurrentPrice(ctx) })
}

// AvailableBalance wraps the underlying gateway call with the breaker.
func (c *CircuitBreakerGateway) AvailableBalance(ctx context.Context) (float64, error) {
	return execBreaker(c.breaker, c.gateway, func(g Gateway) (float64, error) { return g.AvailableBalance(ctx) })
}

// HoldingsBalance wraps the underlying gateway call with the breaker.
func (c *CircuitBreakerGateway) HoldingsBalance(ctx context.Context) (float64, error) {
	return execBreaker(c.breaker, c.gateway, func(g Gateway) (float64, error) { return g.HoldingsBalance(ctx) })
}

// Deposit wraps the underlying gateway call with the breaker.
func (c *CircuitBreakerGateway) Deposit(ctx context.Context, amount float64, clientTag string) error {
	_, err := execBreaker(c.breaker, c.gateway, func(g Gateway) (struct{}, error) {
		return struct{}{}, g.Deposit(ctx, amount, clientTag)
	})
	return err
}

// Withdraw wraps the underlying gateway call with the breaker.
func (c *CircuitBreakerGateway) Withdraw(ctx context.Context, amount float64, clientTag string) error {
	_, err := execBreaker(c.breaker, c.gateway, func(g Gateway) (struct{}, error) {
		return struct{}{}, g.Withdraw(ctx, amount, clientTag)
	})
	return err
}

// Ensure CircuitBreakerGateway implements Gateway at compile time.
var _ Gateway = (*CircuitBreakerGateway)(nil)
