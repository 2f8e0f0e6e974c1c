// Package localtx is C9: helpers that run a task inside a fresh,
// locally-managed transaction, committing on success and rolling back on
// any error, plus retry variants for the StaleObject race.
package localtx

import (
	"context"
	"errors"
	"time"

	"github.com/mnohosten/jacis-go/pkg/jacis"
)

// WithLocalTx begins a transaction on c, runs task with it bound into ctx,
// commits on success, and rolls back if task returns an error or commit
// itself fails. Container.Rollback cannot itself fail (see store_txn.go),
// so unlike the spec's original there is no rollback-failure to chain as
// suppressed.
func WithLocalTx(ctx context.Context, c *jacis.Container, description string, task func(ctx context.Context) error) error {
	tx := c.BeginLocalTransaction(description)
	txCtx := jacis.ContextWithTx(ctx, tx)

	if err := task(txCtx); err != nil {
		c.Rollback(tx)
		return err
	}
	if err := c.Commit(tx); err != nil {
		c.Rollback(tx)
		return err
	}
	return nil
}

// WithLocalTxAndRetry is WithLocalTx, retrying up to retries-1 additional
// times specifically on jacis.StaleObjectError; any other error propagates
// immediately.
func WithLocalTxAndRetry(ctx context.Context, c *jacis.Container, description string, retries int, task func(ctx context.Context) error) error {
	if retries < 1 {
		retries = 1
	}
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		err := WithLocalTx(ctx, c, description, task)
		if err == nil {
			return nil
		}
		lastErr = err
		var stale *jacis.StaleObjectError
		if !errors.As(err, &stale) {
			return err
		}
	}
	return lastErr
}

// RetryPolicy configures WithLocalTxAndPolicy: MaxAttempts bounds the
// total number of tries, ShouldRetry decides whether a given failure is
// retryable (nil means "retry only on StaleObjectError", matching
// WithLocalTxAndRetry), and Delay computes the pause before attempt+1
// (nil or a zero duration means no pause).
type RetryPolicy struct {
	MaxAttempts int
	ShouldRetry func(err error) bool
	Delay       func(attempt int) time.Duration
}

func (p RetryPolicy) shouldRetry(err error) bool {
	if p.ShouldRetry != nil {
		return p.ShouldRetry(err)
	}
	var stale *jacis.StaleObjectError
	return errors.As(err, &stale)
}

// WithLocalTxAndPolicy is the extended executor: configurable per-attempt
// delay and predicate-driven retry, in place of the fixed
// StaleObjectError-only policy of WithLocalTxAndRetry.
func WithLocalTxAndPolicy(ctx context.Context, c *jacis.Container, description string, policy RetryPolicy, task func(ctx context.Context) error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := WithLocalTx(ctx, c, description, task)
		if err == nil {
			return nil
		}
		lastErr = err
		if !policy.shouldRetry(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		if policy.Delay == nil {
			continue
		}
		d := policy.Delay(attempt)
		if d <= 0 {
			continue
		}
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
