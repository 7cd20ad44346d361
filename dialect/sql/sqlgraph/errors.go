package sqlgraph

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	dream "github.com/rvohealth/dream-sub006"
)

// ConstraintError represents an error that occurred while executing a
// statement that violated a database constraint.
type ConstraintError struct {
	msg  string
	kind dream.PersistenceKind
	wrap error
}

// Error implements the error interface.
func (e ConstraintError) Error() string {
	return "sqlgraph: constraint failed: " + e.msg
}

// Unwrap returns the underlying driver error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// Kind returns the violated constraint class.
func (e ConstraintError) Kind() dream.PersistenceKind {
	return e.kind
}

// WrapConstraint wraps err in a ConstraintError when it resulted from a
// constraint violation and returns it unchanged otherwise.
func WrapConstraint(err error) error {
	switch kind := Classify(err); kind {
	case dream.KindUniqueViolation, dream.KindForeignKeyViolation, dream.KindCheckViolation:
		return &ConstraintError{msg: err.Error(), kind: kind, wrap: err}
	default:
		return err
	}
}

// Classify maps a driver error to a persistence kind.
func Classify(err error) dream.PersistenceKind {
	var ce *ConstraintError
	switch {
	case err == nil:
		return dream.KindUnknown
	case errors.As(err, &ce):
		return ce.kind
	case errors.Is(err, context.DeadlineExceeded):
		return dream.KindTimeout
	case IsUniqueConstraintError(err):
		return dream.KindUniqueViolation
	case IsForeignKeyConstraintError(err):
		return dream.KindForeignKeyViolation
	case IsCheckConstraintError(err):
		return dream.KindCheckViolation
	default:
		return dream.KindUnknown
	}
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	var e *ConstraintError
	return errors.As(err, &e) ||
		IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// violation describes how each supported driver reports one constraint class.
type violation struct {
	pgCode      string
	mysqlNumber []uint16
	sqliteCode  []int
	fallback    []string
}

var (
	uniqueViolation = violation{
		pgCode:      pgUniqueViolation,
		mysqlNumber: []uint16{mysqlDuplicateEntry},
		sqliteCode:  []int{sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY},
		fallback: []string{
			"Error 1062",                 // MySQL
			"violates unique constraint", // Postgres
			"UNIQUE constraint failed",   // SQLite
		},
	}
	foreignKeyViolation = violation{
		pgCode:      pgForeignKeyViolation,
		mysqlNumber: []uint16{mysqlForeignKeyParent, mysqlForeignKeyChild},
		sqliteCode:  []int{sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY},
		fallback: []string{
			"Error 1451",
			"Error 1452",
			"violates foreign key constraint",
			"FOREIGN KEY constraint failed",
		},
	}
	checkViolation = violation{
		pgCode:      pgCheckViolation,
		mysqlNumber: []uint16{mysqlCheckConstraintViolate},
		sqliteCode:  []int{sqlite3.SQLITE_CONSTRAINT_CHECK},
		fallback: []string{
			"Error 3819",
			"violates check constraint",
			"CHECK constraint failed",
		},
	}
)

func (v violation) match(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == v.pgCode
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		for _, n := range v.mysqlNumber {
			if myErr.Number == n {
				return true
			}
		}
		return false
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		for _, c := range v.sqliteCode {
			if liteErr.Code() == c {
				return true
			}
		}
		return false
	}
	// Drivers wrapped by other layers only keep the message.
	return containsAny(err.Error(), v.fallback...)
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	return uniqueViolation.match(err)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	return foreignKeyViolation.match(err)
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
// e.g. a value does not satisfy a check condition.
func IsCheckConstraintError(err error) bool {
	return checkViolation.match(err)
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
