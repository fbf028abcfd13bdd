package orm

import (
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
)

// Column represents a type-safe database column reference
type Column[T any] struct {
	Name  string
	Table string
}

// String returns the full column reference for SQL
func (c Column[T]) String() string {
	if c.Table != "" {
		return fmt.Sprintf("%s.%s", c.Table, c.Name)
	}
	return c.Name
}

// Eq creates an equality condition
func (c Column[T]) Eq(value T) Condition {
	return Condition{squirrel.Eq{c.String(): value}}
}

// Asc creates an ascending order expression
func (c Column[T]) Asc() string {
	return c.String() + " ASC"
}

// StringColumn provides string-specific operations
type StringColumn struct {
	Column[string]
}

// EqualFold matches case-insensitively without wildcards
func (c StringColumn) EqualFold(value string) Condition {
	return Condition{squirrel.Expr("LOWER("+c.String()+") = LOWER(?)", value)}
}

// BoolColumn references a boolean column
type BoolColumn struct {
	Column[bool]
}

// TimeColumn references a timestamp column
type TimeColumn struct {
	Column[time.Time]
}

// Condition wraps squirrel conditions for type safety
type Condition struct {
	condition squirrel.Sqlizer
}

// And combines conditions with AND
func (c Condition) And(other Condition) Condition {
	return Condition{squirrel.And{c.condition, other.condition}}
}

// ToSqlizer returns the underlying squirrel condition
func (c Condition) ToSqlizer() squirrel.Sqlizer {
	return c.condition
}
