package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/eleven-am/todoapi/internal/logger"
	"github.com/eleven-am/todoapi/internal/model"
	"github.com/eleven-am/todoapi/internal/orm"
)

// Config holds connection pool settings
type Config struct {
	URL             string
	ConnMaxLifetime time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
}

// NewConfig returns pool settings with defaults for url
func NewConfig(url string) *Config {
	return &Config{
		URL:             url,
		ConnMaxLifetime: 10 * time.Minute,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
	}
}

// Store holds the typed repositories and the connection they run on.
// A Store obtained inside WithTransaction runs every statement on that transaction.
type Store struct {
	db       orm.DBWrapper
	executor orm.DBExecutor

	Users *orm.Repository[model.User]
	Todos *orm.Repository[model.Todo]
}

// Open connects to Postgres and returns a Store on the pool
func Open(ctx context.Context, cfg *Config) (*Store, error) {
	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, orm.ParsePostgreSQLError(fmt.Errorf("failed to ping database: %w", err), "connect", "")
	}

	logger.DB().Debugf("Connected to database (max_open=%d, max_idle=%d)", cfg.MaxOpenConns, cfg.MaxIdleConns)

	return New(db)
}

// New wraps an existing pool
func New(db orm.DBWrapper) (*Store, error) {
	users, err := orm.NewRepository[model.User](db, model.UserMetadata)
	if err != nil {
		return nil, fmt.Errorf("failed to create users repository: %w", err)
	}
	todos, err := orm.NewRepository[model.Todo](db, model.TodoMetadata)
	if err != nil {
		return nil, fmt.Errorf("failed to create todos repository: %w", err)
	}

	for _, setup := range []interface {
		SetupCommonHooks()
		SetupAuditHooks(orm.AuditFunc)
	}{users, todos} {
		setup.SetupCommonHooks()
		setup.SetupAuditHooks(auditLog)
	}

	return &Store{
		db:       db,
		executor: db,
		Users:    users,
		Todos:    todos,
	}, nil
}

func auditLog(operation, table string, _ interface{}, err error, duration time.Duration) {
	entry := logger.DB().WithFields(map[string]interface{}{
		"operation": operation,
		"table":     table,
		"duration":  duration.String(),
	})
	if err != nil {
		entry.WithError(err).Debug("Write failed")
		return
	}
	entry.Debug("Write completed")
}

func (s *Store) withExecutor(exec orm.DBExecutor) *Store {
	return &Store{
		db:       s.db,
		executor: exec,
		Users:    s.Users.WithExecutor(exec),
		Todos:    s.Todos.WithExecutor(exec),
	}
}

// maxTransactionAttempts bounds how often a transaction is rerun after a
// serialization failure, deadlock or dropped connection
const maxTransactionAttempts = 3

func (s *Store) inTransaction() bool {
	_, ok := s.executor.(*sqlx.Tx)
	return ok
}

// WithTransaction runs fn on a Store bound to a new transaction.
// Nested calls reuse the surrounding transaction. Retryable failures rerun fn
// from the start in a fresh transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(*Store) error) error {
	if s.inTransaction() {
		return fn(s)
	}

	tm := orm.NewTransactionManager(s.db)
	for attempt := 1; ; attempt++ {
		err := tm.WithTransaction(ctx, func(tx *sqlx.Tx) error {
			return fn(s.withExecutor(tx))
		})
		if err == nil || !orm.IsRetryable(err) || ctx.Err() != nil || attempt == maxTransactionAttempts {
			return err
		}
		logger.DB().WithError(err).Debugf("Retrying transaction (attempt %d of %d)", attempt+1, maxTransactionAttempts)
	}
}

// Ping checks the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool
func (s *Store) Close() error {
	return s.db.Close()
}
