package services

import (
	"context"

	"github.com/upb/hms-audit/repositories"
)

// WithTransactionResult executes fn within a database transaction and
// returns its result. Commits on success, rolls back on error or panic.
// The context passed to fn carries the transaction, so repositories called
// with it join it. The result is returned even when the transaction rolls
// back, so callers can report partial progress.
func WithTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) (T, error)) (T, error) {
	var result T
	err := txMgr.InTransaction(ctx, func(txCtx context.Context, tx repositories.Transaction) error {
		var fnErr error
		result, fnErr = fn(txCtx, tx)
		return fnErr
	})
	return result, err
}
