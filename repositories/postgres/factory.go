package postgres

import (
	"context"
	"time"

	"github.com/upb/hms-audit/config"
	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db       *DB
	txm      *TransactionManager
	clock    repositories.Clock
	observer CaptureObserver
	logger   *zap.Logger
}

// Option configures a RepositoryFactory
type Option func(*RepositoryFactory)

// WithClock sets the clock audit timestamps are taken from
func WithClock(clock repositories.Clock) Option {
	return func(f *RepositoryFactory) { f.clock = clock }
}

// WithCaptureObserver sets the observer notified of captured writes
func WithCaptureObserver(o CaptureObserver) Option {
	return func(f *RepositoryFactory) { f.observer = o }
}

// NewRepositoryFactory opens the database and creates a factory over it
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger, opts ...Option) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return NewRepositoryFactoryFromDB(db, cfg.Database.LockTimeout, logger, opts...), nil
}

// NewRepositoryFactoryFromDB creates a factory over an open pool
func NewRepositoryFactoryFromDB(db *DB, lockTimeout time.Duration, logger *zap.Logger, opts ...Option) *RepositoryFactory {
	f := &RepositoryFactory{
		db:     db,
		txm:    NewTransactionManager(db, lockTimeout, logger),
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// InitSchema creates the schema on the factory's database
func (f *RepositoryFactory) InitSchema(ctx context.Context) error {
	return f.db.InitSchema(ctx)
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	audit := NewAuditRepository(f.db, f.clock, f.logger)
	return &repositories.Repositories{
		Patients: NewTrackedRepository(f.db, f.txm, audit,
			func() *models.Patient { return &models.Patient{} }, f.observer, f.logger),
		Doctors: NewTrackedRepository(f.db, f.txm, audit,
			func() *models.Doctor { return &models.Doctor{} }, f.observer, f.logger),
		Staff: NewTrackedRepository(f.db, f.txm, audit,
			func() *models.Staff { return &models.Staff{} }, f.observer, f.logger),
		Medicals: NewTrackedRepository(f.db, f.txm, audit,
			func() *models.Medical { return &models.Medical{} }, f.observer, f.logger),
		Facilities: NewTrackedRepository(f.db, f.txm, audit,
			func() *models.Facility { return &models.Facility{} }, f.observer, f.logger),
		Labs: NewTrackedRepository(f.db, f.txm, audit,
			func() *models.Lab { return &models.Lab{} }, f.observer, f.logger),
		AuditLogs: audit,
		Inventory: NewInventoryRepository(f.db, f.logger),
		Alerts:    NewNotificationRepository(f.db, f.logger),
	}
}

// GetTransactionManager returns a transaction manager
func (f *RepositoryFactory) GetTransactionManager() repositories.TransactionManager {
	return f.txm
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
