package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/upb/hms-audit/repositories"
)

// SQLSTATE codes the store reacts to
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
	codeInFailedTransaction  = "25P02"
	classConnection          = "08"
	classDataException       = "22"
	classIntegrity           = "23"
)

// classify wraps err with the repositories sentinel matching its cause.
// Errors that match nothing are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%w: %w", repositories.ErrTransactionLost, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", repositories.ErrTransactionLost, err)
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	code := string(pqErr.Code)
	switch {
	case code == codeLockNotAvailable:
		return fmt.Errorf("%w: %w", repositories.ErrLockTimeout, err)
	case code == codeSerializationFailure,
		code == codeDeadlockDetected,
		code == codeQueryCanceled,
		code == codeInFailedTransaction,
		pqErr.Code.Class() == classConnection:
		return fmt.Errorf("%w: %w", repositories.ErrTransactionLost, err)
	case code == codeUniqueViolation:
		return fmt.Errorf("%w: %w", repositories.ErrDuplicate, err)
	case pqErr.Code.Class() == classDataException, pqErr.Code.Class() == classIntegrity:
		return fmt.Errorf("%w: %w", repositories.ErrMalformed, err)
	}
	return err
}
