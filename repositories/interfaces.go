package repositories

import (
	"context"
	"time"

	"github.com/upb/hms-audit/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes fn within a transaction.
	// Commits if fn succeeds, rolls back on error. When ctx already carries
	// a transaction fn joins it and the outer caller decides the outcome.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

// AuditRepository appends and reads the audit log
type AuditRepository interface {
	// Append stores ev and fills in its ID and timestamp
	Append(ctx context.Context, ev *models.AuditEvent) error

	// Recent returns the newest events across all tables, newest first
	Recent(ctx context.Context, limit int) ([]*models.AuditEvent, error)

	// ByTable returns the newest events for one table, newest first
	ByTable(ctx context.Context, table string, limit int) ([]*models.AuditEvent, error)

	// ByEntity returns the newest events for one row, newest first
	ByEntity(ctx context.Context, table, entityID string, limit int) ([]*models.AuditEvent, error)
}

// EntityRepository writes a tracked table. Every write appends exactly one
// audit event in the same transaction as the row change.
type EntityRepository[T models.TrackedEntity] interface {
	// Create inserts e and returns the captured event
	Create(ctx context.Context, e T) (*models.AuditEvent, error)

	// Update replaces every non-key column of the row with e's values
	Update(ctx context.Context, e T) (*models.AuditEvent, error)

	// Delete removes the row with the given key
	Delete(ctx context.Context, id string) (*models.AuditEvent, error)

	// Get retrieves a row by key
	Get(ctx context.Context, id string) (T, error)

	// List retrieves rows ordered by key with pagination
	List(ctx context.Context, limit, offset int) ([]T, error)

	// Count returns the number of rows
	Count(ctx context.Context) (int, error)
}

// InventoryReader answers the stock queries the alert rules need
type InventoryReader interface {
	// ListLowStock returns medicines with count <= threshold
	ListLowStock(ctx context.Context, threshold int) ([]*models.Medical, error)

	// ListExpiringBy returns medicines expiring on or before cutoff
	ListExpiringBy(ctx context.Context, cutoff models.Date) ([]*models.Medical, error)

	// LowestStock returns the n medicines with the smallest count
	LowestStock(ctx context.Context, n int) ([]*models.Medical, error)
}

// NotificationRepository stores alerts
type NotificationRepository interface {
	// AcquireDedupLock serializes alert cycles for the rest of the transaction
	AcquireDedupLock(ctx context.Context) error

	// InsertIfUnseenAbsent stores c unless an unseen alert with the same key
	// exists. A malformed candidate yields an error wrapping ErrMalformed
	// and leaves the surrounding transaction usable.
	InsertIfUnseenAbsent(ctx context.Context, c models.CandidateAlert, createdAt time.Time) (bool, error)

	// ListUnseen returns unseen alerts oldest first
	ListUnseen(ctx context.Context, limit int) ([]*models.Alert, error)

	// List returns alerts newest first
	List(ctx context.Context, limit, offset int) ([]*models.Alert, error)

	// GetByID retrieves an alert by ID
	GetByID(ctx context.Context, id int64) (*models.Alert, error)

	// MarkSeen flags an alert as seen. Marking twice is not an error.
	MarkSeen(ctx context.Context, id int64) error

	// CountUnseen returns the number of unseen alerts
	CountUnseen(ctx context.Context) (int, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Patients   EntityRepository[*models.Patient]
	Doctors    EntityRepository[*models.Doctor]
	Staff      EntityRepository[*models.Staff]
	Medicals   EntityRepository[*models.Medical]
	Facilities EntityRepository[*models.Facility]
	Labs       EntityRepository[*models.Lab]
	AuditLogs  AuditRepository
	Inventory  InventoryReader
	Alerts     NotificationRepository
}

// Counters returns a row counter per tracked table
func (r *Repositories) Counters() map[string]func(ctx context.Context) (int, error) {
	return map[string]func(ctx context.Context) (int, error){
		models.TablePatient:  r.Patients.Count,
		models.TableDoctor:   r.Doctors.Count,
		models.TableStaff:    r.Staff.Count,
		models.TableMedical:  r.Medicals.Count,
		models.TableFacility: r.Facilities.Count,
		models.TableLab:      r.Labs.Count,
	}
}
