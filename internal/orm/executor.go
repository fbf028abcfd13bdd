package orm

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// DBExecutor is what a repository runs its statements against.
// Both *sqlx.DB and *sqlx.Tx satisfy it, so a repository bound to a transaction
// runs exactly the same code as one bound to the pool.
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	Rebind(query string) string
	DriverName() string
}

// Compile-time checks to ensure both sqlx.DB and sqlx.Tx implement DBExecutor
var (
	_ DBExecutor = (*sqlx.DB)(nil)
	_ DBExecutor = (*sqlx.Tx)(nil)
)

// DBWrapper provides the operations only available on a pool
type DBWrapper interface {
	DBExecutor
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	PingContext(ctx context.Context) error
	Close() error
}

var _ DBWrapper = (*sqlx.DB)(nil)
