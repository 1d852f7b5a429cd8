package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBusy reports that SQLite was locked by a concurrent writer, usually the bot core itself.
var ErrBusy = errors.New("error log database is busy")

func isSQLiteBusyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "SQLITE_BUSY")
}

func isSQLiteLockedError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// isSQLiteConflictError matches both forms of SQLite lock contention.
func isSQLiteConflictError(err error) bool {
	return isSQLiteBusyError(err) || isSQLiteLockedError(err)
}

// queryError wraps a failed query, tagging lock contention with ErrBusy.
func queryError(op string, err error) error {
	if isSQLiteConflictError(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrBusy, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
