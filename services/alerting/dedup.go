package alerting

import (
	"context"
	"time"

	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/repositories"
	"go.uber.org/zap"
)

// ApplyResult counts what happened to a batch of candidates
type ApplyResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Dropped  int `json:"dropped"`
}

// Deduplicator stores candidates unless an unseen alert with the same
// severity, title and detail already exists.
type Deduplicator struct {
	repo   repositories.NotificationRepository
	clock  repositories.Clock
	logger *zap.Logger
}

// NewDeduplicator creates a deduplicator. A nil clock uses time.Now.
func NewDeduplicator(repo repositories.NotificationRepository, clock repositories.Clock, logger *zap.Logger) *Deduplicator {
	if clock == nil {
		clock = time.Now
	}
	return &Deduplicator{repo: repo, clock: clock, logger: logger}
}

// Apply inserts each candidate in order. A candidate the store rejects is
// dropped and the batch goes on; an error that loses the transaction stops
// the batch and is returned with the counts so far.
func (d *Deduplicator) Apply(ctx context.Context, candidates []models.CandidateAlert) (ApplyResult, error) {
	var result ApplyResult
	createdAt := d.clock().UTC().Truncate(time.Millisecond)

	for _, c := range candidates {
		inserted, err := d.repo.InsertIfUnseenAbsent(ctx, c, createdAt)
		switch {
		case err != nil && repositories.IsTransactionLost(err):
			return result, err
		case err != nil:
			result.Dropped++
			d.logger.Warn("dropped alert candidate",
				zap.String("key", c.Key()),
				zap.Error(err))
		case inserted:
			result.Inserted++
		default:
			result.Skipped++
		}
	}
	return result, nil
}
