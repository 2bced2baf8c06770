package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/repositories"
	"go.uber.org/zap"
)

const auditColumns = `id, ts, table_name, action, entity_id, old_values, new_values`

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	clock  repositories.Clock
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository. A nil clock uses time.Now.
func NewAuditRepository(db *DB, clock repositories.Clock, logger *zap.Logger) *AuditRepository {
	if clock == nil {
		clock = time.Now
	}
	return &AuditRepository{
		db:     db,
		clock:  clock,
		logger: logger,
	}
}

// Append inserts ev and fills in its ID and timestamp. Append must run in
// the transaction of the row change it describes.
func (r *AuditRepository) Append(ctx context.Context, ev *models.AuditEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("%w: %w", repositories.ErrMalformed, err)
	}

	query := `
		INSERT INTO audit_log (ts, table_name, action, entity_id, old_values, new_values)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, ts
	`

	ts := r.clock().UTC().Truncate(time.Millisecond)

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		ts,
		ev.TableName,
		ev.Action,
		ev.EntityID,
		ev.OldValues,
		ev.NewValues,
	).Scan(&ev.ID, &ev.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", classify(err))
	}
	ev.Timestamp = ev.Timestamp.UTC()

	r.logger.Debug("audit event appended",
		zap.Int64("id", ev.ID),
		zap.String("table", ev.TableName),
		zap.String("action", string(ev.Action)),
	)
	return nil
}

// Recent retrieves the newest audit events across all tables
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	query := `SELECT ` + auditColumns + `
		FROM audit_log
		ORDER BY id DESC
		LIMIT $1
	`

	return r.queryAuditEvents(ctx, query, limit)
}

// ByTable retrieves the newest audit events for one table
func (r *AuditRepository) ByTable(ctx context.Context, table string, limit int) ([]*models.AuditEvent, error) {
	query := `SELECT ` + auditColumns + `
		FROM audit_log
		WHERE table_name = $1
		ORDER BY id DESC
		LIMIT $2
	`

	return r.queryAuditEvents(ctx, query, table, limit)
}

// ByEntity retrieves the newest audit events for one row
func (r *AuditRepository) ByEntity(ctx context.Context, table, entityID string, limit int) ([]*models.AuditEvent, error) {
	query := `SELECT ` + auditColumns + `
		FROM audit_log
		WHERE table_name = $1 AND entity_id = $2
		ORDER BY id DESC
		LIMIT $3
	`

	return r.queryAuditEvents(ctx, query, table, entityID, limit)
}

// queryAuditEvents is a helper function to query multiple audit events
func (r *AuditRepository) queryAuditEvents(ctx context.Context, query string, args ...interface{}) ([]*models.AuditEvent, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", classify(err))
	}
	defer rows.Close()

	events := []*models.AuditEvent{}
	for rows.Next() {
		ev := &models.AuditEvent{}
		err := rows.Scan(
			&ev.ID,
			&ev.Timestamp,
			&ev.TableName,
			&ev.Action,
			&ev.EntityID,
			&ev.OldValues,
			&ev.NewValues,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		ev.Timestamp = ev.Timestamp.UTC()
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}

	return events, nil
}
