package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/repositories"
	"go.uber.org/zap"
)

const (
	notificationColumns = `id, created_at, severity, title, detail, seen`

	// dedupLockKey serializes alert cycles across processes sharing a database
	dedupLockKey = 0x686d73616c657274

	candidateSavepoint = "alert_candidate"
)

// NotificationRepository implements the repositories.NotificationRepository interface
type NotificationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *DB, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// AcquireDedupLock takes a transaction-scoped advisory lock so no two alert
// cycles insert at the same time. The wait is bounded by the lock timeout.
func (r *NotificationRepository) AcquireDedupLock(ctx context.Context) error {
	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", int64(dedupLockKey)); err != nil {
		return fmt.Errorf("failed to acquire dedup lock: %w", classify(err))
	}
	return nil
}

// InsertIfUnseenAbsent inserts c unless an unseen alert with the same
// severity, title and detail exists. Inside a transaction the insert runs
// under a savepoint, so a failed candidate is undone on its own and the
// transaction stays usable unless the failure lost it.
func (r *NotificationRepository) InsertIfUnseenAbsent(ctx context.Context, c models.CandidateAlert, createdAt time.Time) (bool, error) {
	query := `
		INSERT INTO notification (created_at, severity, title, detail, seen)
		SELECT $1::timestamptz, $2::varchar, $3::varchar, $4::varchar, false
		WHERE NOT EXISTS (
			SELECT 1 FROM notification
			WHERE severity = $2::varchar
			  AND title = $3::varchar
			  AND detail IS NOT DISTINCT FROM $4::varchar
			  AND NOT seen
		)
		RETURNING id
	`

	executor := GetExecutor(ctx, r.db)
	savepoint := inTransaction(ctx)

	if savepoint {
		if _, err := executor.ExecContext(ctx, "SAVEPOINT "+candidateSavepoint); err != nil {
			return false, fmt.Errorf("failed to create savepoint: %w", classify(err))
		}
	}

	var id int64
	err := executor.QueryRowContext(ctx, query, createdAt, c.Severity, c.Title, c.Detail).Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		err = classify(err)
		if savepoint && !repositories.IsTransactionLost(err) {
			if _, rbErr := executor.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+candidateSavepoint); rbErr != nil {
				return false, fmt.Errorf("failed to roll back savepoint: %w", classify(rbErr))
			}
		}
		return false, fmt.Errorf("failed to insert notification: %w", err)
	}

	if savepoint {
		if _, relErr := executor.ExecContext(ctx, "RELEASE SAVEPOINT "+candidateSavepoint); relErr != nil {
			return false, fmt.Errorf("failed to release savepoint: %w", classify(relErr))
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	r.logger.Debug("notification inserted", zap.Int64("id", id), zap.String("title", c.Title))
	return true, nil
}

// ListUnseen retrieves unseen alerts, oldest first
func (r *NotificationRepository) ListUnseen(ctx context.Context, limit int) ([]*models.Alert, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notification
		WHERE NOT seen
		ORDER BY created_at, id
		LIMIT $1
	`

	return r.queryAlerts(ctx, query, limit)
}

// List retrieves alerts, newest first
func (r *NotificationRepository) List(ctx context.Context, limit, offset int) ([]*models.Alert, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notification
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`

	return r.queryAlerts(ctx, query, limit, offset)
}

// GetByID retrieves an alert by ID
func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*models.Alert, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notification
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	a := &models.Alert{}
	err := executor.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.CreatedAt, &a.Severity, &a.Title, &a.Detail, &a.Seen,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("notification %d: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get notification: %w", classify(err))
	}
	return a, nil
}

// MarkSeen flags an alert as seen
func (r *NotificationRepository) MarkSeen(ctx context.Context, id int64) error {
	query := `UPDATE notification SET seen = true WHERE id = $1 RETURNING id`

	executor := GetExecutor(ctx, r.db)
	var updated int64
	if err := executor.QueryRowContext(ctx, query, id).Scan(&updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("notification %d: %w", id, repositories.ErrNotFound)
		}
		return fmt.Errorf("failed to mark notification seen: %w", classify(err))
	}

	r.logger.Debug("notification marked seen", zap.Int64("id", id))
	return nil
}

// CountUnseen returns the number of unseen alerts
func (r *NotificationRepository) CountUnseen(ctx context.Context) (int, error) {
	executor := GetExecutor(ctx, r.db)

	var n int
	if err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM notification WHERE NOT seen`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", classify(err))
	}
	return n, nil
}

func (r *NotificationRepository) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]*models.Alert, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", classify(err))
	}
	defer rows.Close()

	alerts := []*models.Alert{}
	for rows.Next() {
		a := &models.Alert{}
		if err := rows.Scan(&a.ID, &a.CreatedAt, &a.Severity, &a.Title, &a.Detail, &a.Seen); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return alerts, nil
}
