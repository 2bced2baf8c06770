package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/repositories"
	"github.com/upb/hms-audit/services"
	"github.com/upb/hms-audit/services/alerting"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sizes of the dashboard lists
const (
	LowestStockSize    = 5
	RecentActivitySize = 10
)

// Counter returns the row count of one table
type Counter func(ctx context.Context) (int, error)

// Service assembles the overview screen
type Service struct {
	counters  map[string]Counter
	inventory repositories.InventoryReader
	alerts    repositories.NotificationRepository
	audit     repositories.AuditRepository
	expiry    *alerting.ExpiryRule
	clock     repositories.Clock
	logger    *zap.Logger
}

// NewService creates a dashboard service. The expiring list uses the
// same window as the expiry alert rule.
func NewService(
	repos *repositories.Repositories,
	expiry *alerting.ExpiryRule,
	clock repositories.Clock,
	logger *zap.Logger,
) *Service {
	if clock == nil {
		clock = time.Now
	}
	counters := make(map[string]Counter)
	for table, fn := range repos.Counters() {
		counters[table] = fn
	}
	return &Service{
		counters:  counters,
		inventory: repos.Inventory,
		alerts:    repos.Alerts,
		audit:     repos.AuditLogs,
		expiry:    expiry,
		clock:     clock,
		logger:    logger,
	}
}

// Build reads every dashboard section concurrently. Any failing section
// fails the whole dashboard.
func (s *Service) Build(ctx context.Context) (*models.Dashboard, error) {
	now := s.clock()
	d := &models.Dashboard{
		GeneratedAt:  now.UTC(),
		EntityCounts: make(map[string]int, len(s.counters)),
		ExpiryCutoff: s.expiry.Cutoff(now),
	}

	counts := make([]int, 0, len(s.counters))
	tables := make([]string, 0, len(s.counters))
	for table := range s.counters {
		tables = append(tables, table)
		counts = append(counts, 0)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, table := range tables {
		count := s.counters[table]
		g.Go(func() error {
			n, err := count(gctx)
			if err != nil {
				return fmt.Errorf("count %s: %w", table, err)
			}
			counts[i] = n
			return nil
		})
	}
	g.Go(func() error {
		n, err := s.alerts.CountUnseen(gctx)
		if err != nil {
			return fmt.Errorf("count unseen alerts: %w", err)
		}
		d.UnseenAlerts = n
		return nil
	})
	g.Go(func() error {
		items, err := s.inventory.LowestStock(gctx, LowestStockSize)
		if err != nil {
			return fmt.Errorf("lowest stock: %w", err)
		}
		d.LowestStock = values(items)
		return nil
	})
	g.Go(func() error {
		items, err := s.inventory.ListExpiringBy(gctx, d.ExpiryCutoff)
		if err != nil {
			return fmt.Errorf("expiring medicines: %w", err)
		}
		d.ExpiringSoon = values(items)
		return nil
	})
	g.Go(func() error {
		events, err := s.audit.Recent(gctx, RecentActivitySize)
		if err != nil {
			return fmt.Errorf("recent activity: %w", err)
		}
		d.RecentActivity = make([]models.AuditEvent, 0, len(events))
		for _, ev := range events {
			d.RecentActivity = append(d.RecentActivity, *ev)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("failed to build dashboard", zap.Error(err))
		return nil, services.FromStore(err, services.ErrEntityNotFound)
	}

	for i, table := range tables {
		d.EntityCounts[table] = counts[i]
	}
	return d, nil
}

func values(items []*models.Medical) []models.Medical {
	out := make([]models.Medical, 0, len(items))
	for _, m := range items {
		out = append(out, *m)
	}
	return out
}
