// Package repotest provides testify mocks of the repository interfaces.
package repotest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/repositories"
)

type txKey struct{}

// TransactionManager runs fn directly and records the outcome
type TransactionManager struct {
	mu        sync.Mutex
	BeginErr  error
	Commits   int
	Rollbacks int
}

// Begin returns a no-op transaction, or BeginErr
func (m *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	return &Transaction{ctx: ctx}, nil
}

// InTransaction runs fn and counts a commit or a rollback
func (m *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) (err error) {
	if tx, ok := ctx.Value(txKey{}).(*Transaction); ok {
		return fn(ctx, tx)
	}

	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			m.record(false)
			panic(p)
		}
	}()

	if err := fn(txCtx, tx); err != nil {
		m.record(false)
		return err
	}
	m.record(true)
	return nil
}

// Outcomes returns the commit and rollback counts
func (m *TransactionManager) Outcomes() (commits, rollbacks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Commits, m.Rollbacks
}

func (m *TransactionManager) record(committed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if committed {
		m.Commits++
	} else {
		m.Rollbacks++
	}
}

// Transaction is a no-op transaction
type Transaction struct {
	ctx context.Context
}

func (t *Transaction) Commit() error            { return nil }
func (t *Transaction) Rollback() error          { return nil }
func (t *Transaction) Context() context.Context { return t.ctx }

// AuditRepository is a mock of repositories.AuditRepository
type AuditRepository struct {
	mock.Mock
}

func (m *AuditRepository) Append(ctx context.Context, ev *models.AuditEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *AuditRepository) Recent(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]*models.AuditEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AuditRepository) ByTable(ctx context.Context, table string, limit int) ([]*models.AuditEvent, error) {
	args := m.Called(ctx, table, limit)
	if v := args.Get(0); v != nil {
		return v.([]*models.AuditEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AuditRepository) ByEntity(ctx context.Context, table, entityID string, limit int) ([]*models.AuditEvent, error) {
	args := m.Called(ctx, table, entityID, limit)
	if v := args.Get(0); v != nil {
		return v.([]*models.AuditEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

// InventoryReader is a mock of repositories.InventoryReader
type InventoryReader struct {
	mock.Mock
}

func (m *InventoryReader) ListLowStock(ctx context.Context, threshold int) ([]*models.Medical, error) {
	args := m.Called(ctx, threshold)
	if v := args.Get(0); v != nil {
		return v.([]*models.Medical), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *InventoryReader) ListExpiringBy(ctx context.Context, cutoff models.Date) ([]*models.Medical, error) {
	args := m.Called(ctx, cutoff)
	if v := args.Get(0); v != nil {
		return v.([]*models.Medical), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *InventoryReader) LowestStock(ctx context.Context, n int) ([]*models.Medical, error) {
	args := m.Called(ctx, n)
	if v := args.Get(0); v != nil {
		return v.([]*models.Medical), args.Error(1)
	}
	return nil, args.Error(1)
}

// NotificationRepository is a mock of repositories.NotificationRepository
type NotificationRepository struct {
	mock.Mock
}

func (m *NotificationRepository) AcquireDedupLock(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *NotificationRepository) InsertIfUnseenAbsent(ctx context.Context, c models.CandidateAlert, createdAt time.Time) (bool, error) {
	args := m.Called(ctx, c, createdAt)
	return args.Bool(0), args.Error(1)
}

func (m *NotificationRepository) ListUnseen(ctx context.Context, limit int) ([]*models.Alert, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]*models.Alert), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *NotificationRepository) List(ctx context.Context, limit, offset int) ([]*models.Alert, error) {
	args := m.Called(ctx, limit, offset)
	if v := args.Get(0); v != nil {
		return v.([]*models.Alert), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *NotificationRepository) GetByID(ctx context.Context, id int64) (*models.Alert, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Alert), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *NotificationRepository) MarkSeen(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *NotificationRepository) CountUnseen(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// EntityRepository is a mock of repositories.EntityRepository
type EntityRepository[T models.TrackedEntity] struct {
	mock.Mock
}

func (m *EntityRepository[T]) Create(ctx context.Context, e T) (*models.AuditEvent, error) {
	args := m.Called(ctx, e)
	if v := args.Get(0); v != nil {
		return v.(*models.AuditEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EntityRepository[T]) Update(ctx context.Context, e T) (*models.AuditEvent, error) {
	args := m.Called(ctx, e)
	if v := args.Get(0); v != nil {
		return v.(*models.AuditEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EntityRepository[T]) Delete(ctx context.Context, id string) (*models.AuditEvent, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.AuditEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EntityRepository[T]) Get(ctx context.Context, id string) (T, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(T), args.Error(1)
	}
	var zero T
	return zero, args.Error(1)
}

func (m *EntityRepository[T]) List(ctx context.Context, limit, offset int) ([]T, error) {
	args := m.Called(ctx, limit, offset)
	if v := args.Get(0); v != nil {
		return v.([]T), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EntityRepository[T]) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
