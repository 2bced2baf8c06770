package audit

import (
	"context"

	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/repositories"
	"github.com/upb/hms-audit/services"
	"go.uber.org/zap"
)

// MaxLimit caps how many events a single query returns
const MaxLimit = 1000

// Service answers read-only queries over the audit log. Queries run on the
// pool outside any transaction so readers never wait on writers.
type Service struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
}

// NewService creates a new audit query service
func NewService(repo repositories.AuditRepository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Recent returns the newest events across all tables
func (s *Service) Recent(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.Recent(ctx, limit)
	if err != nil {
		s.logger.Error("failed to query recent audit events", zap.Int("limit", limit), zap.Error(err))
		return nil, services.FromStore(err, services.ErrEntityNotFound)
	}
	return nonNil(events), nil
}

// ByTable returns the newest events for one tracked table
func (s *Service) ByTable(ctx context.Context, table string, limit int) ([]*models.AuditEvent, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.ByTable(ctx, table, limit)
	if err != nil {
		s.logger.Error("failed to query audit events by table",
			zap.String("table", table),
			zap.Int("limit", limit),
			zap.Error(err))
		return nil, services.FromStore(err, services.ErrEntityNotFound)
	}
	return nonNil(events), nil
}

// ByEntity returns the change history of one row, newest first. A row
// that was never changed yields an empty history, not an error.
func (s *Service) ByEntity(ctx context.Context, table, entityID string, limit int) ([]*models.AuditEvent, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if entityID == "" {
		return nil, services.ErrInvalidInput.Wrap(nil).WithDetail("field", "entity_id")
	}
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	events, err := s.repo.ByEntity(ctx, table, entityID, limit)
	if err != nil {
		s.logger.Error("failed to query audit events by entity",
			zap.String("table", table),
			zap.String("entity_id", entityID),
			zap.Error(err))
		return nil, services.FromStore(err, services.ErrEntityNotFound)
	}
	return nonNil(events), nil
}

func normalizeLimit(limit int) (int, error) {
	if limit <= 0 {
		return 0, services.ErrInvalidLimit.Wrap(nil).WithDetail("limit", limit)
	}
	if limit > MaxLimit {
		return MaxLimit, nil
	}
	return limit, nil
}

func checkTable(table string) error {
	if !models.IsTrackedTable(table) {
		return services.ErrUnknownTable.Wrap(nil).WithDetail("table", table)
	}
	return nil
}

func nonNil(events []*models.AuditEvent) []*models.AuditEvent {
	if events == nil {
		return []*models.AuditEvent{}
	}
	return events
}
