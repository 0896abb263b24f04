package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/rushbq/Familypoints-Pages/household"
)

// classify wraps a driver error with op and maps it onto the household
// sentinels. A nil err stays nil.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if closedErr(err) {
		return fmt.Errorf("%s: %w: %v", op, household.ErrStorageUnavailable, err)
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch sqliteErr.Code {
	case sqlite3.ErrFull:
		return fmt.Errorf("%s: %w: %v", op, household.ErrQuotaExceeded, err)
	case sqlite3.ErrCorrupt, sqlite3.ErrNotADB, sqlite3.ErrCantOpen,
		sqlite3.ErrReadonly, sqlite3.ErrIoErr, sqlite3.ErrPerm:
		return fmt.Errorf("%s: %w: %v", op, household.ErrStorageUnavailable, err)
	case sqlite3.ErrConstraint:
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%s: %w: %v", op, household.ErrDuplicateID, err)
		}
		return fmt.Errorf("%s: %w: %v", op, household.ErrInvalidEntity, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// closedErr matches database/sql errors for a closed pool or connection.
// The pool's "database is closed" error is unexported, so it is matched by
// message.
func closedErr(err error) bool {
	return errors.Is(err, sql.ErrConnDone) ||
		strings.Contains(err.Error(), "sql: database is closed")
}
