package store

import (
	"context"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
)

// lockRetries and lockBaseDelay implement the capped exponential backoff
// the durable state layer applies to locked-row errors before surfacing a
// failure to the caller: 5 retries, base 1s, factor 2.
const (
	lockRetries   = 5
	lockBaseDelay = time.Second
)

// isLockedErr reports whether err is a SQLite "database is locked" or
// "database table is locked" condition, the only class of error this
// layer retries internally.
func isLockedErr(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// withRetry runs op, retrying on a locked-row error with capped
// exponential backoff. It gives up and returns the last error once
// lockRetries is exhausted, or immediately if ctx is canceled.
func withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt <= lockRetries; attempt++ {
		err = op()
		if err == nil || !isLockedErr(err) {
			return err
		}
		if attempt == lockRetries {
			break
		}
		delay := lockBaseDelay * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
