// file: repository/retry.go

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/sethvargo/go-retry"
)

const (
	readRetries   = 3
	readRetryBase = 50 * time.Millisecond
)

// permanent reports errors a retry cannot fix: data exceptions (class 22,
// e.g. a malformed uuid) and integrity violations (class 23).
func permanent(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	class := pqErr.Code.Class()
	return class == "22" || class == "23"
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// readWithRetry runs an idempotent read, retrying transient failures with
// exponential backoff. Each attempt gets its own query timeout. Writes must
// never go through here.
func readWithRetry(ctx context.Context, timeout time.Duration, read func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(readRetries, retry.NewExponential(readRetryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := withTimeout(ctx, timeout)
		defer cancel()

		err := read(attemptCtx)
		if err == nil || errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrNotFound) || permanent(err) || ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	})
}
