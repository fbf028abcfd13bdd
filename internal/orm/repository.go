package orm

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// ModelMetadata describes how a struct maps onto its table
type ModelMetadata struct {
	TableName  string
	PrimaryKey string
	// Columns lists every persisted column in insert order; each must match a `db` tag on the struct.
	Columns []string
}

func (m *ModelMetadata) validate(structType reflect.Type) error {
	if m == nil || m.TableName == "" {
		return fmt.Errorf("%w: missing table metadata", ErrInvalidStruct)
	}
	if m.PrimaryKey == "" {
		return ErrNoPrimaryKey
	}

	tags := make(map[string]bool, structType.NumField())
	for i := 0; i < structType.NumField(); i++ {
		tag := structType.Field(i).Tag.Get("db")
		if tag != "" && tag != "-" {
			tags[tag] = true
		}
	}

	hasPK := false
	for _, col := range m.Columns {
		if !tags[col] {
			return fmt.Errorf("%w: column %s has no matching db tag on %s", ErrInvalidStruct, col, structType.Name())
		}
		if col == m.PrimaryKey {
			hasPK = true
		}
	}
	if !hasPK {
		return fmt.Errorf("%w: primary key %s is not a listed column", ErrNoPrimaryKey, m.PrimaryKey)
	}
	return nil
}

// Repository provides CRUD and query access to a single table
type Repository[T any] struct {
	db            DBExecutor
	metadata      *ModelMetadata
	tableName     string
	selectColumns []string
	primaryKey    string

	insertSQL string

	hookManager *hookManager
}

// NewRepository creates a repository for T using the given metadata
func NewRepository[T any](db DBExecutor, metadata *ModelMetadata) (*Repository[T], error) {
	var zero T
	structType := reflect.TypeOf(zero)
	if structType == nil || structType.Kind() != reflect.Struct {
		return nil, ErrInvalidStruct
	}
	if err := metadata.validate(structType); err != nil {
		return nil, err
	}

	r := &Repository[T]{
		db:            db,
		metadata:      metadata,
		tableName:     metadata.TableName,
		selectColumns: append([]string(nil), metadata.Columns...),
		primaryKey:    metadata.PrimaryKey,
	}
	r.buildStatements()

	return r, nil
}

func (r *Repository[T]) buildStatements() {
	named := make([]string, len(r.selectColumns))
	for i, col := range r.selectColumns {
		named[i] = ":" + col
	}

	r.insertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.tableName, strings.Join(r.selectColumns, ", "), strings.Join(named, ", "))
}

// WithExecutor returns a copy of the repository bound to exec, sharing hooks.
// Used to move a repository into a transaction.
func (r *Repository[T]) WithExecutor(exec DBExecutor) *Repository[T] {
	clone := *r
	clone.db = exec
	return &clone
}

// TableName returns the table this repository operates on
func (r *Repository[T]) TableName() string {
	return r.tableName
}

// FindByID loads a single record by primary key
func (r *Repository[T]) FindByID(ctx context.Context, id interface{}) (*T, error) {
	record, err := r.Query(ctx).
		Where(Condition{eqCondition(r.primaryKey, id)}).
		First()
	if err != nil {
		if IsNotFound(err) {
			return nil, &Error{Op: "find_by_id", Table: r.tableName, Err: ErrNotFound}
		}
		return nil, err
	}
	return record, nil
}

// Create inserts a record, running create hooks around the statement
func (r *Repository[T]) Create(ctx context.Context, record *T) error {
	if record == nil {
		return &Error{Op: "create", Table: r.tableName, Err: ErrInvalidStruct}
	}

	if err := r.executeBeforeHook(HookBeforeCreate, ctx, record, r.insertSQL); err != nil {
		return err
	}

	start := time.Now()
	_, err := r.db.NamedExecContext(ctx, r.insertSQL, record)
	if err != nil {
		err = ParsePostgreSQLError(err, "create", r.tableName)
	}

	if hookErr := r.executeAfterHook(HookAfterCreate, ctx, record, r.insertSQL, err, time.Since(start)); hookErr != nil && err == nil {
		err = hookErr
	}
	return err
}

// DeleteByID removes a record by primary key, failing with ErrNotFound when nothing matched
func (r *Repository[T]) DeleteByID(ctx context.Context, id interface{}) error {
	if err := r.executeBeforeHook(HookBeforeDelete, ctx, id, ""); err != nil {
		return err
	}

	start := time.Now()
	rows, err := r.Query(ctx).
		Where(Condition{eqCondition(r.primaryKey, id)}).
		Delete()
	if err == nil && rows == 0 {
		err = &Error{Op: "delete", Table: r.tableName, Err: ErrNotFound}
	}

	if hookErr := r.executeAfterHook(HookAfterDelete, ctx, id, "", err, time.Since(start)); hookErr != nil && err == nil {
		err = hookErr
	}
	return err
}
