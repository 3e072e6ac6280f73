package database

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	apperrors "github.com/allisson/pseudonymizer/internal/errors"
)

// ErrTransient marks a storage failure that may succeed when the unit of work is retried.
// Once retries are exhausted it surfaces as an unavailable backend.
var ErrTransient = apperrors.Wrap(apperrors.ErrUnavailable, "transient storage error")

// Postgres SQLSTATE codes treated as transient.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
)

// MySQL error numbers treated as transient.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlDuplicateEntry  = 1062
)

// RetryConfig controls WithRetry.
type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryConfig returns three attempts starting at 50ms and capped at one second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:  3,
		BaseDelay: 50 * time.Millisecond,
		MaxDelay:  time.Second,
	}
}

// IsTransient reports whether err is a serialization failure, deadlock, lock timeout or an
// error explicitly marked with ErrTransient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if apperrors.Is(err, ErrTransient) {
		return true
	}

	var pqErr *pq.Error
	if apperrors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}

	var mysqlErr *mysql.MySQLError
	if apperrors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlLockWaitTimeout, mysqlDeadlock:
			return true
		}
	}

	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation on either backend.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if apperrors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	var mysqlErr *mysql.MySQLError
	if apperrors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return false
}

// WithRetry runs fn until it succeeds, returns a non-transient error or the configured attempts
// are used up. Exhausted transient errors are returned wrapped in ErrTransient.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.BaseDelay
	policy.MaxInterval = cfg.MaxDelay
	policy.MaxElapsedTime = 0
	policy.Reset()

	var lastErr error
	operation := func() error {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(cfg.Attempts-1)), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		if lastErr != nil && IsTransient(lastErr) {
			if apperrors.Is(lastErr, ErrTransient) {
				return lastErr
			}
			return apperrors.Join(ErrTransient, lastErr)
		}
		return err
	}
	return nil
}
