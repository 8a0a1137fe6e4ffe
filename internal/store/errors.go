package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict matches every *ConflictError.
	ErrConflict = errors.New("conflict")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// ConflictError reports a write rejected by a UNIQUE or FOREIGN KEY constraint.
type ConflictError struct {
	Field      string
	Constraint string
	Referenced bool
}

func (e *ConflictError) Error() string {
	if e.Referenced {
		return fmt.Sprintf("%s is still referenced or points to a missing record", e.Field)
	}
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// translate maps driver errors from lib/pq and pgx onto the package errors.
func translate(table string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var code, constraint string
	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pqErr):
		code, constraint = string(pqErr.Code), pqErr.Constraint
	case errors.As(err, &pgErr):
		code, constraint = pgErr.Code, pgErr.ConstraintName
	default:
		return err
	}

	switch code {
	case pgUniqueViolation:
		return &ConflictError{Field: constraintField(table, constraint), Constraint: constraint}
	case pgForeignKeyViolation:
		return &ConflictError{Field: constraintField(table, constraint), Constraint: constraint, Referenced: true}
	}
	return err
}

// constraintField recovers the column from Postgres' default constraint
// names: <table>_<column>_key and <table>_<column>_fkey.
func constraintField(table, constraint string) string {
	field := strings.TrimPrefix(constraint, table+"_")
	field = strings.TrimSuffix(field, "_fkey")
	field = strings.TrimSuffix(field, "_key")
	if field == "" {
		return "record"
	}
	return field
}
