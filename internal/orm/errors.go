package orm

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Common errors
var (
	ErrNotFound         = errors.New("record not found")
	ErrInvalidStruct    = errors.New("invalid struct type")
	ErrNoPrimaryKey     = errors.New("no primary key defined")
	ErrDuplicateKey     = errors.New("duplicate key violation")
	ErrForeignKey       = errors.New("foreign key violation")
	ErrCheckConstraint  = errors.New("check constraint violation")
	ErrNotNull          = errors.New("not null constraint violation")
	ErrSerialization    = errors.New("serialization failure")
	ErrConnectionFailed = errors.New("database connection failed")
	ErrTimeout          = errors.New("operation timeout")
	ErrCanceled         = errors.New("operation canceled")
)

// Error provides detailed error information
type Error struct {
	Op         string        // Operation that failed
	Table      string        // Table involved
	Err        error         // Underlying error
	Query      string        // SQL query (if applicable)
	Args       []interface{} // Query arguments (if applicable)
	Constraint string        // Constraint name (if applicable)
	Column     string        // Column name (if applicable)
	Retryable  bool          // Whether the operation can be retried
}

func (e *Error) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("orm: %s", e.Op))

	if e.Table != "" {
		parts = append(parts, fmt.Sprintf("table=%s", e.Table))
	}

	if e.Column != "" {
		parts = append(parts, fmt.Sprintf("column=%s", e.Column))
	}

	if e.Constraint != "" {
		parts = append(parts, fmt.Sprintf("constraint=%s", e.Constraint))
	}

	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for Error type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return errors.Is(e.Err, target)
	}

	if t.Op != "" && e.Op == t.Op {
		return true
	}

	return errors.Is(e.Err, t.Err)
}

// ParsePostgreSQLError converts PostgreSQL errors to ORM errors
func ParsePostgreSQLError(err error, op, table string) error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Op: op, Table: table, Err: ErrNotFound}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if parsed := fromPQError(pqErr, op, table); parsed != nil {
			return parsed
		}
	}

	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "duplicate key value violates unique constraint"):
		return &Error{Op: op, Table: table, Err: ErrDuplicateKey, Constraint: extractConstraintName(errStr)}
	case strings.Contains(errStr, "violates foreign key constraint"):
		return &Error{Op: op, Table: table, Err: ErrForeignKey, Constraint: extractConstraintName(errStr)}
	case strings.Contains(errStr, "violates not-null constraint"):
		return &Error{Op: op, Table: table, Err: ErrNotNull, Column: extractColumnName(errStr)}
	case strings.Contains(errStr, "violates check constraint"):
		return &Error{Op: op, Table: table, Err: ErrCheckConstraint, Constraint: extractConstraintName(errStr)}
	case strings.Contains(errStr, "context deadline exceeded"):
		return &Error{Op: op, Table: table, Err: ErrTimeout, Retryable: true}
	case strings.Contains(errStr, "context canceled"):
		return &Error{Op: op, Table: table, Err: ErrCanceled}
	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "broken pipe"):
		return &Error{Op: op, Table: table, Err: ErrConnectionFailed, Retryable: true}
	}

	return &Error{Op: op, Table: table, Err: err}
}

func fromPQError(pqErr *pq.Error, op, table string) error {
	constraint := pqErr.Constraint
	if constraint == "" {
		constraint = extractConstraintName(pqErr.Message)
	}
	column := pqErr.Column
	if column == "" {
		column = extractColumnName(pqErr.Message)
	}

	switch pqErr.Code {
	case "23505":
		return &Error{Op: op, Table: table, Err: ErrDuplicateKey, Constraint: constraint}
	case "23503":
		return &Error{Op: op, Table: table, Err: ErrForeignKey, Constraint: constraint}
	case "23502":
		return &Error{Op: op, Table: table, Err: ErrNotNull, Column: column}
	case "23514":
		return &Error{Op: op, Table: table, Err: ErrCheckConstraint, Constraint: constraint}
	case "40001", "40P01":
		return &Error{Op: op, Table: table, Err: ErrSerialization, Retryable: true}
	}
	return nil
}

// Helper functions to extract information from error messages

func extractConstraintName(errStr string) string {
	idx := strings.Index(errStr, "constraint \"")
	if idx == -1 {
		return ""
	}
	start := idx + len("constraint \"")
	end := strings.Index(errStr[start:], "\"")
	if end == -1 {
		return ""
	}
	return errStr[start : start+end]
}

func extractColumnName(errStr string) string {
	columnIdx := strings.Index(errStr, "column \"")
	if columnIdx == -1 {
		return ""
	}
	start := columnIdx + 8
	end := strings.Index(errStr[start:], "\"")
	if end == -1 {
		return ""
	}
	return errStr[start : start+end]
}

// IsNotFound reports whether err means no row matched
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var ormErr *Error
	if errors.As(err, &ormErr) {
		return ormErr.Retryable
	}
	return false
}

