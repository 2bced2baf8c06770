package notifications

import (
	"context"

	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/repositories"
	"github.com/upb/hms-audit/services"
	"go.uber.org/zap"
)

// Paging limits
const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Service reads alerts and records that users saw them
type Service struct {
	repo   repositories.NotificationRepository
	logger *zap.Logger
}

// NewService creates a notification service
func NewService(repo repositories.NotificationRepository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ListUnseen returns unseen alerts oldest first
func (s *Service) ListUnseen(ctx context.Context, limit int) ([]*models.Alert, error) {
	alerts, err := s.repo.ListUnseen(ctx, clamp(limit))
	if err != nil {
		s.logger.Error("failed to list unseen alerts", zap.Error(err))
		return nil, services.FromStore(err, services.ErrAlertNotFound)
	}
	return nonNil(alerts), nil
}

// List returns every alert newest first
func (s *Service) List(ctx context.Context, limit, offset int) ([]*models.Alert, error) {
	if offset < 0 {
		return nil, services.ErrInvalidInput.Wrap(nil).WithDetail("offset", "must not be negative")
	}
	alerts, err := s.repo.List(ctx, clamp(limit), offset)
	if err != nil {
		s.logger.Error("failed to list alerts", zap.Error(err))
		return nil, services.FromStore(err, services.ErrAlertNotFound)
	}
	return nonNil(alerts), nil
}

// Get returns one alert
func (s *Service) Get(ctx context.Context, id int64) (*models.Alert, error) {
	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, services.FromStore(err, services.ErrAlertNotFound)
	}
	return alert, nil
}

// MarkSeen flags the alert as seen. Marking an alert twice succeeds.
func (s *Service) MarkSeen(ctx context.Context, id int64) error {
	if err := s.repo.MarkSeen(ctx, id); err != nil {
		s.logger.Warn("failed to mark alert seen", zap.Int64("alert_id", id), zap.Error(err))
		return services.FromStore(err, services.ErrAlertNotFound)
	}
	s.logger.Debug("alert marked seen", zap.Int64("alert_id", id))
	return nil
}

// CountUnseen returns the number of unseen alerts
func (s *Service) CountUnseen(ctx context.Context) (int, error) {
	n, err := s.repo.CountUnseen(ctx)
	if err != nil {
		return 0, services.FromStore(err, services.ErrAlertNotFound)
	}
	return n, nil
}

func clamp(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

func nonNil(alerts []*models.Alert) []*models.Alert {
	if alerts == nil {
		return []*models.Alert{}
	}
	return alerts
}
