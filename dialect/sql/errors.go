package sql

import (
	"errors"
	"slices"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlColumnCannotBeNull     = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// IsConstraintError returns true if the error resulted from a database
// constraint violation. The error is classified, never translated: callers
// still receive the native driver error.
func IsConstraintError(err error) bool {
	return IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsNotNullConstraintError(err) ||
		IsCheckConstraintError(err)
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool {
	return classify(err, class{
		pg:     []string{pgUniqueViolation},
		mysql:  []uint16{mysqlDuplicateEntry},
		sqlite: []int{sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY},
		text:   []string{"Error 1062", "violates unique constraint", "UNIQUE constraint failed"},
	})
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	return classify(err, class{
		pg:     []string{pgForeignKeyViolation},
		mysql:  []uint16{mysqlForeignKeyParent, mysqlForeignKeyChild},
		sqlite: []int{sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY},
		text:   []string{"Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"},
	})
}

// IsNotNullConstraintError reports if the error resulted from a NOT NULL constraint violation.
func IsNotNullConstraintError(err error) bool {
	return classify(err, class{
		pg:     []string{pgNotNullViolation},
		mysql:  []uint16{mysqlColumnCannotBeNull},
		sqlite: []int{sqlite3.SQLITE_CONSTRAINT_NOTNULL},
		text:   []string{"Error 1048", "violates not-null constraint", "NOT NULL constraint failed"},
	})
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
func IsCheckConstraintError(err error) bool {
	return classify(err, class{
		pg:     []string{pgCheckViolation},
		mysql:  []uint16{mysqlCheckConstraintViolate},
		sqlite: []int{sqlite3.SQLITE_CONSTRAINT_CHECK},
		text:   []string{"Error 3819", "violates check constraint", "CHECK constraint failed"},
	})
}

// class lists the driver specific codes of one violation class.
type class struct {
	pg     []string
	mysql  []uint16
	sqlite []int
	text   []string
}

func classify(err error, c class) bool {
	if err == nil {
		return false
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return slices.Contains(c.pg, string(pgErr.Code))
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return slices.Contains(c.mysql, myErr.Number)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && slices.Contains(c.sqlite, liteErr.Code()) {
		return true
	}
	// Fallback to string matching for primary result codes and drivers
	// that don't expose typed errors.
	msg := err.Error()
	for _, s := range c.text {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
