package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/upb/hms-audit/repositories"
	"go.uber.org/zap"
)

// DefaultLockTimeout bounds how long a statement waits for a row lock
const DefaultLockTimeout = 3 * time.Second

// transactionContextKey is the context key for storing transactions
type transactionContextKey struct{}

// TransactionManager implements the TransactionManager interface
type TransactionManager struct {
	db          *DB
	logger      *zap.Logger
	lockTimeout time.Duration
}

// NewTransactionManager creates a new transaction manager. A non-positive
// lockTimeout falls back to DefaultLockTimeout.
func NewTransactionManager(db *DB, lockTimeout time.Duration, logger *zap.Logger) *TransactionManager {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &TransactionManager{
		db:          db,
		logger:      logger,
		lockTimeout: lockTimeout,
	}
}

// Begin starts a new transaction with the lock timeout applied
func (tm *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	sqlTx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}

	setTimeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", tm.lockTimeout.Milliseconds())
	if _, err := sqlTx.ExecContext(ctx, setTimeout); err != nil {
		_ = sqlTx.Rollback()
		return nil, fmt.Errorf("failed to set lock timeout: %w", classify(err))
	}

	tm.logger.Debug("transaction started")

	return &Transaction{
		tx:     sqlTx,
		ctx:    ctx,
		logger: tm.logger,
	}, nil
}

// InTransaction executes a function within a transaction.
// Commits if fn succeeds, rolls back on error or panic. If ctx already
// carries a transaction, fn runs inside it.
func (tm *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) (err error) {
	if outer, ok := GetTransactionFromContext(ctx); ok {
		return fn(ctx, outer)
	}

	tx, err := tm.Begin(ctx)
	if err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, transactionContextKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txCtx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			tm.logger.Error("failed to rollback transaction",
				zap.Error(rbErr),
				zap.NamedError("original_error", err),
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// Transaction implements the Transaction interface
type Transaction struct {
	tx     *sql.Tx
	ctx    context.Context
	logger *zap.Logger
}

// Commit commits the transaction
func (t *Transaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	t.logger.Debug("transaction committed")
	return nil
}

// Rollback rolls back the transaction
func (t *Transaction) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		// Ignore error if transaction is already closed
		if err == sql.ErrTxDone {
			return nil
		}
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	t.logger.Debug("transaction rolled back")
	return nil
}

// Context returns the transaction context
func (t *Transaction) Context() context.Context {
	return t.ctx
}

// GetTx returns the underlying sql.Tx for use by repositories
func (t *Transaction) GetTx() *sql.Tx {
	return t.tx
}

// GetTransactionFromContext retrieves a transaction from the context if available
func GetTransactionFromContext(ctx context.Context) (repositories.Transaction, bool) {
	tx, ok := ctx.Value(transactionContextKey{}).(repositories.Transaction)
	return tx, ok
}

// Executor is an interface that can execute queries (both *sql.DB and *sql.Tx)
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GetExecutor returns the transaction carried by ctx, or the pool
func GetExecutor(ctx context.Context, db *DB) Executor {
	if tx, ok := GetTransactionFromContext(ctx); ok {
		if pgTx, ok := tx.(*Transaction); ok {
			return pgTx.tx
		}
	}
	return db.DB
}

// inTransaction reports whether ctx carries a postgres transaction
func inTransaction(ctx context.Context) bool {
	tx, ok := GetTransactionFromContext(ctx)
	if !ok {
		return false
	}
	_, ok = tx.(*Transaction)
	return ok
}
