package orm

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
)

// Query provides a fluent interface for building queries against a single table
type Query[T any] struct {
	repo    *Repository[T]
	builder squirrel.SelectBuilder
	err     error
	ctx     context.Context

	limit       *uint64
	orderBy     []string
	whereClause squirrel.And
	forUpdate   bool
}

// Query creates a new query builder bound to ctx
func (r *Repository[T]) Query(ctx context.Context) *Query[T] {
	return &Query[T]{
		repo: r,
		builder: squirrel.Select(r.selectColumns...).
			From(r.tableName).
			PlaceholderFormat(squirrel.Dollar),
		ctx:         ctx,
		whereClause: squirrel.And{},
	}
}

func eqCondition(column string, value interface{}) squirrel.Sqlizer {
	return squirrel.Eq{column: value}
}

// Where adds a type-safe condition
func (q *Query[T]) Where(condition Condition) *Query[T] {
	if q.err != nil {
		return q
	}
	if condition.condition == nil {
		q.err = fmt.Errorf("empty condition")
		return q
	}
	q.whereClause = append(q.whereClause, condition.ToSqlizer())
	return q
}

// OrderBy adds an ORDER BY clause
func (q *Query[T]) OrderBy(expressions ...string) *Query[T] {
	if q.err != nil {
		return q
	}
	q.orderBy = append(q.orderBy, expressions...)
	return q
}

// Limit sets the LIMIT clause
func (q *Query[T]) Limit(limit uint64) *Query[T] {
	if q.err != nil {
		return q
	}
	q.limit = &limit
	return q
}

// ForUpdate locks the selected rows until the surrounding transaction ends
func (q *Query[T]) ForUpdate() *Query[T] {
	q.forUpdate = true
	return q
}

func (q *Query[T]) buildQuery() (string, []interface{}, error) {
	if q.err != nil {
		return "", nil, q.err
	}

	builder := q.builder

	if len(q.whereClause) > 0 {
		builder = builder.Where(q.whereClause)
	}

	for _, orderBy := range q.orderBy {
		builder = builder.OrderBy(orderBy)
	}

	if q.limit != nil {
		builder = builder.Limit(*q.limit)
	}

	if q.forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	return builder.ToSql()
}

// Find executes the query and returns all matching records
func (q *Query[T]) Find() ([]T, error) {
	sqlQuery, args, err := q.buildQuery()
	if err != nil {
		return nil, &Error{
			Op:    "find",
			Table: q.repo.tableName,
			Err:   fmt.Errorf("failed to build query: %w", err),
		}
	}

	var records []T
	if err := q.repo.db.SelectContext(q.ctx, &records, sqlQuery, args...); err != nil {
		parsed := ParsePostgreSQLError(err, "find", q.repo.tableName)
		if ormErr, ok := parsed.(*Error); ok {
			ormErr.Query = sqlQuery
			ormErr.Args = args
		}
		return nil, parsed
	}

	if records == nil {
		records = []T{}
	}
	return records, nil
}

// First executes the query and returns the first matching record
func (q *Query[T]) First() (*T, error) {
	q.Limit(1)
	records, err := q.Find()
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, &Error{
			Op:    "first",
			Table: q.repo.tableName,
			Err:   ErrNotFound,
		}
	}

	return &records[0], nil
}

// Count returns the number of records matching the query
func (q *Query[T]) Count() (int64, error) {
	if q.err != nil {
		return 0, &Error{Op: "count", Table: q.repo.tableName, Err: q.err}
	}

	countBuilder := squirrel.Select("COUNT(*)").
		From(q.repo.tableName).
		PlaceholderFormat(squirrel.Dollar)

	if len(q.whereClause) > 0 {
		countBuilder = countBuilder.Where(q.whereClause)
	}

	sqlQuery, args, err := countBuilder.ToSql()
	if err != nil {
		return 0, &Error{
			Op:    "count",
			Table: q.repo.tableName,
			Err:   fmt.Errorf("failed to build count query: %w", err),
		}
	}

	var count int64
	if err := q.repo.db.GetContext(q.ctx, &count, sqlQuery, args...); err != nil {
		return 0, ParsePostgreSQLError(err, "count", q.repo.tableName)
	}

	return count, nil
}

// Exists checks if any records match the query
func (q *Query[T]) Exists() (bool, error) {
	count, err := q.Count()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update sets the given columns on every matching record and returns the affected row count
func (q *Query[T]) Update(values map[string]interface{}) (int64, error) {
	if q.err != nil {
		return 0, &Error{Op: "update", Table: q.repo.tableName, Err: q.err}
	}
	if len(values) == 0 {
		return 0, &Error{Op: "update", Table: q.repo.tableName, Err: fmt.Errorf("no columns to update")}
	}
	if len(q.whereClause) == 0 {
		return 0, &Error{Op: "update", Table: q.repo.tableName, Err: fmt.Errorf("refusing to update without conditions")}
	}

	updateBuilder := squirrel.Update(q.repo.tableName).
		SetMap(values).
		Where(q.whereClause).
		PlaceholderFormat(squirrel.Dollar)

	sqlQuery, args, err := updateBuilder.ToSql()
	if err != nil {
		return 0, &Error{
			Op:    "update",
			Table: q.repo.tableName,
			Err:   fmt.Errorf("failed to build update query: %w", err),
		}
	}

	if err := q.repo.executeBeforeHook(HookBeforeUpdate, q.ctx, values, sqlQuery); err != nil {
		return 0, err
	}

	start := time.Now()
	var rowsAffected int64
	result, err := q.repo.db.ExecContext(q.ctx, sqlQuery, args...)
	if err != nil {
		err = ParsePostgreSQLError(err, "update", q.repo.tableName)
	} else if rowsAffected, err = result.RowsAffected(); err != nil {
		err = &Error{
			Op:    "update",
			Table: q.repo.tableName,
			Err:   fmt.Errorf("failed to get rows affected: %w", err),
		}
	}

	if hookErr := q.repo.executeAfterHook(HookAfterUpdate, q.ctx, values, sqlQuery, err, time.Since(start)); hookErr != nil && err == nil {
		err = hookErr
	}
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// Delete deletes all records matching the query
func (q *Query[T]) Delete() (int64, error) {
	if q.err != nil {
		return 0, &Error{Op: "delete", Table: q.repo.tableName, Err: q.err}
	}
	if len(q.whereClause) == 0 {
		return 0, &Error{Op: "delete", Table: q.repo.tableName, Err: fmt.Errorf("refusing to delete without conditions")}
	}

	deleteBuilder := squirrel.Delete(q.repo.tableName).
		Where(q.whereClause).
		PlaceholderFormat(squirrel.Dollar)

	sqlQuery, args, err := deleteBuilder.ToSql()
	if err != nil {
		return 0, &Error{
			Op:    "delete",
			Table: q.repo.tableName,
			Err:   fmt.Errorf("failed to build delete query: %w", err),
		}
	}

	result, err := q.repo.db.ExecContext(q.ctx, sqlQuery, args...)
	if err != nil {
		return 0, ParsePostgreSQLError(err, "delete", q.repo.tableName)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, &Error{
			Op:    "delete",
			Table: q.repo.tableName,
			Err:   fmt.Errorf("failed to get rows affected: %w", err),
		}
	}

	return rowsAffected, nil
}
