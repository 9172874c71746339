// Package retry wraps gateway calls with bounded retry and fixed
// backoff. Every component that talks to the gateway goes through it.
package retry

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/eddiefleurent/schrute_bucks/internal/gateway"
)

// Config bounds the retry loop.
type Config struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// Backoff is the fixed wait between attempts. Exponential growth is
	// deliberately not used: the tick cadence already spaces retries out.
	Backoff time.Duration
}

// DefaultConfig mirrors the three-attempt, fixed-pause retry the
// gateway operations were tuned for.
var DefaultConfig = Config{
	MaxAttempts: 3,
	Backoff:     10 * time.Second,
}

// Executor retries transient gateway failures. Exhaustion surfaces as
// an error the caller must treat as "this tick's action did not
// happen" — never as a reason to mutate ledger state.
type Executor struct {
	logger *log.Logger
	config Config
}

// NewExecutor creates an Executor; zero or negative config fields fall
// back to DefaultConfig values.
func NewExecutor(logger *log.Logger, config Config) *Executor {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if config.Backoff <= 0 {
		config.Backoff = DefaultConfig.Backoff
	}
	return &Executor{logger: logger, config: config}
}

// Do runs op up to MaxAttempts times, waiting the fixed backoff between
// attempts. Only transient failures are retried; definitive rejections
// return immediately. The backoff wait is cancellable through ctx.
func Do[T any](ctx context.Context, e *Executor, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s canceled: %w", name, err)
		}

		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				e.logger.Printf("%s succeeded on attempt %d/%d", name, attempt, e.config.MaxAttempts)
			}
			return result, nil
		}
		lastErr = err

		if !gateway.IsTransient(err) {
			return zero, fmt.Errorf("%s rejected: %w", name, err)
		}
		if attempt == e.config.MaxAttempts {
			break
		}

		e.logger.Printf("%s attempt %d/%d failed: %v, retrying in %v",
			name, attempt, e.config.MaxAttempts, err, e.config.Backoff)
		select {
		case <-time.After(e.config.Backoff):
		case <-ctx.Done():
			return zero, fmt.Errorf("%s canceled during backoff: %w", name, ctx.Err())
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", name, e.config.MaxAttempts, lastErr)
}

// DoVoid is Do for operations with no result value.
func DoVoid(ctx context.Context, e *Executor, name string, op func(context.Context) error) error {
	_, err := Do(ctx, e, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
