package db

import (
	"errors"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Statement sizes kept well below the bound parameter limits of SQLite
// (32766) and PostgreSQL (65535)
const (
	insertBatchSize = 500  // rows per multi-row entry insert, 8 parameters each
	inBatchSize     = 1000 // values per IN (...) list
)

// isConstraintError reports whether err is a unique, foreign key or not null
// violation. Such errors fail the same way on every attempt.
func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "23"
	}

	return false
}
