package sqlite

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by Get-style lookups when no row matches.
var ErrNotFound = errors.New("not found")

const (
	busyRetries = 5
	busyBackoff = 20 * time.Millisecond
)

// retryOnBusy retries fn while SQLite reports the database as locked.
// busy_timeout covers most contention; this catches the lock upgrades it
// does not.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		if err = fn(); err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(busyBackoff * time.Duration(attempt+1))
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
