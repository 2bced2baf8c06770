package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/repositories"
	"go.uber.org/zap"
)

// CaptureObserver is notified after a captured write succeeds
type CaptureObserver interface {
	ObserveCapture(table string, action models.AuditAction)
}

// TrackedRepository writes a tracked table. Each write runs in one
// transaction that also appends the matching audit event, so a row change
// and its audit entry commit or roll back together.
type TrackedRepository[T models.TrackedEntity] struct {
	db       *DB
	txm      repositories.TransactionManager
	audit    *AuditRepository
	newFn    func() T
	observer CaptureObserver
	logger   *zap.Logger

	table     string
	selectSQL string
	insertSQL string
	updateSQL string
	deleteSQL string
	listSQL   string
	countSQL  string
}

// NewTrackedRepository creates a repository for the table newFn's entities
// belong to. observer may be nil.
func NewTrackedRepository[T models.TrackedEntity](
	db *DB,
	txm repositories.TransactionManager,
	audit *AuditRepository,
	newFn func() T,
	observer CaptureObserver,
	logger *zap.Logger,
) *TrackedRepository[T] {
	proto := newFn()
	table := proto.TableName()
	cols := proto.Columns()
	colList := strings.Join(cols, ", ")

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	// The key column is first; SET covers the rest.
	sets := make([]string, 0, len(cols)-1)
	for i, col := range cols[1:] {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+2))
	}

	return &TrackedRepository[T]{
		db:       db,
		txm:      txm,
		audit:    audit,
		newFn:    newFn,
		observer: observer,
		logger:   logger,
		table:    table,

		selectSQL: fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", colList, table, cols[0]),
		insertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			table, colList, strings.Join(placeholders, ", "), colList),
		updateSQL: fmt.Sprintf("UPDATE %s SET %s WHERE %s = $1 RETURNING %s",
			table, strings.Join(sets, ", "), cols[0], colList),
		deleteSQL: fmt.Sprintf("DELETE FROM %s WHERE %s = $1 RETURNING %s", table, cols[0], colList),
		listSQL:   fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT $1 OFFSET $2", colList, table, cols[0]),
		countSQL:  fmt.Sprintf("SELECT COUNT(*) FROM %s", table),
	}
}

// Create inserts e and appends an INSERT event carrying the stored row
func (r *TrackedRepository[T]) Create(ctx context.Context, e T) (*models.AuditEvent, error) {
	var ev *models.AuditEvent
	err := r.txm.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		executor := GetExecutor(txCtx, r.db)

		stored := r.newFn()
		if err := executor.QueryRowContext(txCtx, r.insertSQL, e.Values()...).Scan(stored.ScanTargets()...); err != nil {
			return fmt.Errorf("failed to insert %s: %w", r.table, classify(err))
		}

		newValues, err := models.SnapshotOf(stored)
		if err != nil {
			return err
		}

		ev = models.NewAuditEvent(r.table, models.AuditActionInsert).
			WithEntity(stored.EntityID()).
			WithNew(newValues)
		return r.appendEvent(txCtx, ev)
	})
	if err != nil {
		return nil, err
	}

	r.captured(ev)
	return ev, nil
}

// Update replaces the row keyed by e.EntityID() and appends an UPDATE event.
// The pre-image is read under a row lock so concurrent writers serialize.
func (r *TrackedRepository[T]) Update(ctx context.Context, e T) (*models.AuditEvent, error) {
	var ev *models.AuditEvent
	err := r.txm.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		executor := GetExecutor(txCtx, r.db)

		before := r.newFn()
		err := executor.QueryRowContext(txCtx, r.selectSQL+" FOR UPDATE", e.EntityID()).Scan(before.ScanTargets()...)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%s %s: %w", r.table, e.EntityID(), repositories.ErrNotFound)
			}
			return fmt.Errorf("failed to lock %s: %w", r.table, classify(err))
		}

		after := r.newFn()
		if err := executor.QueryRowContext(txCtx, r.updateSQL, e.Values()...).Scan(after.ScanTargets()...); err != nil {
			return fmt.Errorf("failed to update %s: %w", r.table, classify(err))
		}

		oldValues, err := models.SnapshotOf(before)
		if err != nil {
			return err
		}
		newValues, err := models.SnapshotOf(after)
		if err != nil {
			return err
		}

		ev = models.NewAuditEvent(r.table, models.AuditActionUpdate).
			WithEntity(after.EntityID()).
			WithOld(oldValues).
			WithNew(newValues)
		return r.appendEvent(txCtx, ev)
	})
	if err != nil {
		return nil, err
	}

	r.captured(ev)
	return ev, nil
}

// Delete removes the row and appends a DELETE event carrying the removed row
func (r *TrackedRepository[T]) Delete(ctx context.Context, id string) (*models.AuditEvent, error) {
	var ev *models.AuditEvent
	err := r.txm.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		executor := GetExecutor(txCtx, r.db)

		removed := r.newFn()
		err := executor.QueryRowContext(txCtx, r.deleteSQL, id).Scan(removed.ScanTargets()...)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%s %s: %w", r.table, id, repositories.ErrNotFound)
			}
			return fmt.Errorf("failed to delete %s: %w", r.table, classify(err))
		}

		oldValues, err := models.SnapshotOf(removed)
		if err != nil {
			return err
		}

		ev = models.NewAuditEvent(r.table, models.AuditActionDelete).
			WithEntity(removed.EntityID()).
			WithOld(oldValues)
		return r.appendEvent(txCtx, ev)
	})
	if err != nil {
		return nil, err
	}

	r.captured(ev)
	return ev, nil
}

// Get retrieves a row by key
func (r *TrackedRepository[T]) Get(ctx context.Context, id string) (T, error) {
	executor := GetExecutor(ctx, r.db)

	row := r.newFn()
	if err := executor.QueryRowContext(ctx, r.selectSQL, id).Scan(row.ScanTargets()...); err != nil {
		var zero T
		if errors.Is(err, sql.ErrNoRows) {
			return zero, fmt.Errorf("%s %s: %w", r.table, id, repositories.ErrNotFound)
		}
		return zero, fmt.Errorf("failed to get %s: %w", r.table, classify(err))
	}
	return row, nil
}

// List retrieves rows ordered by key
func (r *TrackedRepository[T]) List(ctx context.Context, limit, offset int) ([]T, error) {
	executor := GetExecutor(ctx, r.db)

	rows, err := executor.QueryContext(ctx, r.listSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.table, classify(err))
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		row := r.newFn()
		if err := rows.Scan(row.ScanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.table, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", r.table, err)
	}
	return out, nil
}

// Count returns the number of rows in the table
func (r *TrackedRepository[T]) Count(ctx context.Context) (int, error) {
	executor := GetExecutor(ctx, r.db)

	var n int
	if err := executor.QueryRowContext(ctx, r.countSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.table, classify(err))
	}
	return n, nil
}

func (r *TrackedRepository[T]) appendEvent(ctx context.Context, ev *models.AuditEvent) error {
	if err := r.audit.Append(ctx, ev); err != nil {
		return fmt.Errorf("%w: %w", repositories.ErrAuditAppend, err)
	}
	return nil
}

func (r *TrackedRepository[T]) captured(ev *models.AuditEvent) {
	r.logger.Debug("change captured",
		zap.String("table", ev.TableName),
		zap.String("action", string(ev.Action)),
		zap.Int64("audit_id", ev.ID),
	)
	if r.observer != nil {
		r.observer.ObserveCapture(ev.TableName, ev.Action)
	}
}
