package postgres

import (
	"context"
	"fmt"

	"github.com/upb/hms-audit/models"
	"go.uber.org/zap"
)

const medicalColumns = `id, name, manufacturer, expiry_date, cost, count`

// InventoryRepository answers read-only stock queries over the medical table
type InventoryRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *DB, logger *zap.Logger) *InventoryRepository {
	return &InventoryRepository{
		db:     db,
		logger: logger,
	}
}

// ListLowStock retrieves medicines whose count is at or below threshold
func (r *InventoryRepository) ListLowStock(ctx context.Context, threshold int) ([]*models.Medical, error) {
	query := `SELECT ` + medicalColumns + `
		FROM medical
		WHERE count <= $1
		ORDER BY count, id
	`

	return r.queryMedicals(ctx, query, threshold)
}

// ListExpiringBy retrieves medicines expiring on or before cutoff
func (r *InventoryRepository) ListExpiringBy(ctx context.Context, cutoff models.Date) ([]*models.Medical, error) {
	query := `SELECT ` + medicalColumns + `
		FROM medical
		WHERE expiry_date <= $1::date
		ORDER BY expiry_date, id
	`

	return r.queryMedicals(ctx, query, cutoff)
}

// LowestStock retrieves the n medicines with the smallest count
func (r *InventoryRepository) LowestStock(ctx context.Context, n int) ([]*models.Medical, error) {
	query := `SELECT ` + medicalColumns + `
		FROM medical
		ORDER BY count, id
		LIMIT $1
	`

	return r.queryMedicals(ctx, query, n)
}

func (r *InventoryRepository) queryMedicals(ctx context.Context, query string, args ...interface{}) ([]*models.Medical, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", classify(err))
	}
	defer rows.Close()

	items := []*models.Medical{}
	for rows.Next() {
		m := &models.Medical{}
		if err := rows.Scan(m.ScanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan medical: %w", err)
		}
		items = append(items, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory: %w", err)
	}

	return items, nil
}
