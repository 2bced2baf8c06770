package repositories

import "errors"

// Store error sentinels. Implementations wrap them so callers can match
// with errors.Is regardless of the driver underneath.
var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("duplicate record")
	ErrMalformed       = errors.New("malformed record")
	ErrLockTimeout     = errors.New("lock wait timed out")
	ErrTransactionLost = errors.New("transaction lost")
)

// IsTransactionLost reports whether err left the current transaction
// unusable, so no further statements may run in it.
func IsTransactionLost(err error) bool {
	return errors.Is(err, ErrTransactionLost) || errors.Is(err, ErrLockTimeout)
}

// ErrAuditAppend marks a failed audit log append. The row change it
// belonged to has been rolled back.
var ErrAuditAppend = errors.New("audit append failed")
