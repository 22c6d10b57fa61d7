package dbretry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"
)

// ErrUnavailable is returned by Connect when the store never became reachable.
var ErrUnavailable = errors.New("database unavailable")

var (
	maxElapsedTime  = 30 * time.Second
	initialInterval = 500 * time.Millisecond
	maxInterval     = 5 * time.Second
	maxRetries      = uint64(5)
)

// retryableClasses are the SQLSTATE classes worth another attempt:
// connection exceptions, transaction rollbacks, insufficient resources and
// operator intervention.
var retryableClasses = []string{"08", "40", "53", "57"}

// retryableCodes are individual SQLSTATE codes outside those classes.
var retryableCodes = map[string]struct{}{
	"55006": {}, // object_in_use
	"55P03": {}, // lock_not_available
}

var networkMarkers = []string{
	"connection reset by peer",
	"broken pipe",
	"connection refused",
	"no connection",
	"i/o timeout",
	"EOF",
}

// IsRetryableError checks if the given error is retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var pgerr pgdriver.Error
	if errors.As(err, &pgerr) {
		code := pgerr.Field('C')
		if _, ok := retryableCodes[code]; ok {
			return true
		}

		for _, class := range retryableClasses {
			if strings.HasPrefix(code, class) {
				return true
			}
		}

		return false
	}

	// A canceled caller should stop, not retry
	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()
	for _, marker := range networkMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

func newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(maxElapsedTime),
		backoff.WithInitialInterval(initialInterval),
		backoff.WithMaxInterval(maxInterval),
	), maxRetries)

	return backoff.WithContext(b, ctx)
}

// Operation wraps a database operation with retry logic.
func Operation[T any](ctx context.Context, operation func(context.Context) (T, error)) (T, error) {
	var (
		result  T
		lastErr error
	)

	err := backoff.Retry(func() error {
		var err error

		result, err = operation(ctx)
		if err == nil {
			return nil
		}

		if !IsRetryableError(err) {
			return backoff.Permanent(err)
		}

		lastErr = err

		return err
	}, newBackOff(ctx))
	if err != nil {
		if lastErr != nil {
			return result, fmt.Errorf("database operation failed after retries: %w", lastErr)
		}

		return result, err
	}

	return result, nil
}

// NoResult wraps a database operation that doesn't return a result.
func NoResult(ctx context.Context, operation func(context.Context) error) error {
	_, err := Operation(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})

	return err
}

// Transaction runs fn inside a transaction, retrying the whole transaction.
func Transaction(ctx context.Context, db *bun.DB, fn func(context.Context, bun.Tx) error) error {
	return NoResult(ctx, func(ctx context.Context) error {
		return db.RunInTx(ctx, nil, fn)
	})
}

// Connect pings the database until it answers, making at most attempts tries
// spaced by delay. It returns ErrUnavailable when every attempt failed.
func Connect(ctx context.Context, db *bun.DB, attempts int, delay time.Duration, logger *zap.Logger) error {
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)),
		ctx,
	)

	err := backoff.Retry(func() error {
		attempt++

		err := db.PingContext(ctx)
		if err != nil {
			logger.Warn("Database connection attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("maxAttempts", attempts),
				zap.Error(err))
		}

		return err
	}, b)
	if err != nil {
		return fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, attempt, err)
	}

	return nil
}
