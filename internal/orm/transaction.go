package orm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TxBeginner starts transactions
type TxBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TransactionManager runs functions inside a transaction
type TransactionManager struct {
	db TxBeginner
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(db TxBeginner) *TransactionManager {
	return &TransactionManager{db: db}
}

// WithTransaction executes fn within a transaction.
// The transaction commits when fn returns nil and rolls back otherwise, including on panic.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := tm.db.BeginTxx(ctx, nil)
	if err != nil {
		return ParsePostgreSQLError(fmt.Errorf("failed to begin transaction: %w", err), "begin", "")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return ParsePostgreSQLError(fmt.Errorf("failed to commit: %w", err), "commit", "")
	}

	return nil
}
