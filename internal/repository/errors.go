// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// reservation ledger and the handlers to distinguish between different
// failure scenarios without inspecting driver errors themselves.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as a duplicate transaction id.  Handlers
// should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when registering or updating a user with an
// email address that is already taken.
var ErrEmailExists = errors.New("email already exists")

// ErrEventNameExists is returned when an event name collides with an
// existing event.
var ErrEventNameExists = errors.New("event name already exists")

// ErrCapacityBelowReserved is returned when an update would shrink an
// event's total_seats below the seats already reserved.
var ErrCapacityBelowReserved = errors.New("total seats below reserved seats")

// MySQL server error numbers the repositories and the ledger react to.
const (
	errDupEntry        = 1062
	errRowIsReferenced = 1451
	errNoReferencedRow = 1452
	errLockWaitTimeout = 1205
	errLockDeadlock    = 1213
	errCheckConstraint = 3819
)

func mysqlNumber(err error) (uint16, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number, true
	}
	return 0, false
}

// IsDuplicateKey reports whether err is a unique key violation.
func IsDuplicateKey(err error) bool {
	n, ok := mysqlNumber(err)
	return ok && n == errDupEntry
}

// IsForeignKeyViolation reports whether err is a referential integrity
// failure in either direction (missing parent or existing children).
func IsForeignKeyViolation(err error) bool {
	n, ok := mysqlNumber(err)
	return ok && (n == errRowIsReferenced || n == errNoReferencedRow)
}

// IsCheckViolation reports whether a CHECK constraint rejected the write.
func IsCheckViolation(err error) bool {
	n, ok := mysqlNumber(err)
	return ok && n == errCheckConstraint
}

// IsRetryable reports whether the transaction was aborted by InnoDB lock
// management and can be retried from the start.
func IsRetryable(err error) bool {
	n, ok := mysqlNumber(err)
	return ok && (n == errLockDeadlock || n == errLockWaitTimeout)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func uintPtr(n sql.NullInt64) *uint64 {
	if !n.Valid {
		return nil
	}
	v := uint64(n.Int64)
	return &v
}
