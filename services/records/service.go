// Package records exposes create, read, update and delete over the tracked
// hospital tables. Every write is captured into the audit log by the
// repository in the same transaction as the row change.
package records

import (
	"context"

	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/repositories"
	"github.com/upb/hms-audit/services"
	"go.uber.org/zap"
)

// Paging defaults for List
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// ErrIDMismatch is returned when an update body names a different row than the path
var ErrIDMismatch = services.NewDomainError(services.ErrorTypeValidation, "id in body does not match path", nil)

// Service is the record service for one tracked table
type Service[T models.TrackedEntity] struct {
	repo   repositories.EntityRepository[T]
	table  string
	logger *zap.Logger
}

// NewService creates a record service for table
func NewService[T models.TrackedEntity](table string, repo repositories.EntityRepository[T], logger *zap.Logger) *Service[T] {
	return &Service[T]{
		repo:   repo,
		table:  table,
		logger: logger.With(zap.String("table", table)),
	}
}

// Table returns the table this service writes
func (s *Service[T]) Table() string {
	return s.table
}

// Create inserts e and returns the audit event written with it
func (s *Service[T]) Create(ctx context.Context, e T) (*models.AuditEvent, error) {
	ev, err := s.repo.Create(ctx, e)
	if err != nil {
		s.logger.Warn("create failed", zap.String("entity_id", e.EntityID()), zap.Error(err))
		return nil, services.FromStore(err, services.ErrEntityNotFound)
	}
	s.logger.Info("record created", zap.String("entity_id", e.EntityID()), zap.Int64("audit_id", ev.ID))
	return ev, nil
}

// Update replaces the row id with e. e must carry the same key.
func (s *Service[T]) Update(ctx context.Context, id string, e T) (*models.AuditEvent, error) {
	if e.EntityID() != id {
		return nil, ErrIDMismatch.Wrap(nil).
			WithDetail("path_id", id).
			WithDetail("body_id", e.EntityID())
	}

	ev, err := s.repo.Update(ctx, e)
	if err != nil {
		s.logger.Warn("update failed", zap.String("entity_id", id), zap.Error(err))
		return nil, services.FromStore(err, services.ErrEntityNotFound)
	}
	s.logger.Info("record updated", zap.String("entity_id", id), zap.Int64("audit_id", ev.ID))
	return ev, nil
}

// Delete removes the row id
func (s *Service[T]) Delete(ctx context.Context, id string) (*models.AuditEvent, error) {
	if id == "" {
		return nil, services.ErrInvalidInput
	}

	ev, err := s.repo.Delete(ctx, id)
	if err != nil {
		s.logger.Warn("delete failed", zap.String("entity_id", id), zap.Error(err))
		return nil, services.FromStore(err, services.ErrEntityNotFound)
	}
	s.logger.Info("record deleted", zap.String("entity_id", id), zap.Int64("audit_id", ev.ID))
	return ev, nil
}

// Get returns the row id
func (s *Service[T]) Get(ctx context.Context, id string) (T, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		var zero T
		return zero, services.FromStore(err, services.ErrEntityNotFound)
	}
	return e, nil
}

// List returns a page of rows ordered by key. A non-positive limit uses
// DefaultPageSize; larger limits are clamped to MaxPageSize.
func (s *Service[T]) List(ctx context.Context, limit, offset int) ([]T, error) {
	if offset < 0 {
		return nil, services.ErrInvalidInput.Wrap(nil).WithDetail("offset", "must not be negative")
	}
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	rows, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("list failed", zap.Error(err))
		return nil, services.FromStore(err, services.ErrEntityNotFound)
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

// Count returns the number of rows
func (s *Service[T]) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, services.FromStore(err, services.ErrEntityNotFound)
	}
	return n, nil
}
