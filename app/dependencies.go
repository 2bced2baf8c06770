package app

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/hms-audit/config"
	"github.com/upb/hms-audit/internal/observability"
	"github.com/upb/hms-audit/middleware"
	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/repositories"
	"github.com/upb/hms-audit/repositories/postgres"
	"github.com/upb/hms-audit/services/alerting"
	"github.com/upb/hms-audit/services/audit"
	"github.com/upb/hms-audit/services/dashboard"
	"github.com/upb/hms-audit/services/delivery"
	"github.com/upb/hms-audit/services/notifications"
	"github.com/upb/hms-audit/services/records"
	"go.uber.org/zap"
)

// RecordServices holds one record service per tracked table
type RecordServices struct {
	Patients   *records.Service[*models.Patient]
	Doctors    *records.Service[*models.Doctor]
	Staff      *records.Service[*models.Staff]
	Medicals   *records.Service[*models.Medical]
	Facilities *records.Service[*models.Facility]
	Labs       *records.Service[*models.Lab]
}

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory
	Repos       *repositories.Repositories
	TxManager   repositories.TransactionManager

	// Services
	Records       *RecordServices
	Audit         *audit.Service
	Notifications *notifications.Service
	Dashboard     *dashboard.Service

	// Alerting
	Evaluator *alerting.Evaluator
	Scheduler *alerting.Scheduler

	// SeenWriter marks alerts seen for the delivery queue. It is started
	// by the command that runs a queue.
	SeenWriter *delivery.SeenWriter

	// Auth, nil when JWT_SECRET is unset
	Tokens         *middleware.HMACValidator
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies opens the database and wires every component over it
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	db, err := postgres.NewDB(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesFromDB(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesFromDB wires every component over an open pool
func NewDependenciesFromDB(cfg *config.Config, db *postgres.DB, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		DB:      db,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	deps.initRepositories()
	deps.initServices()

	if err := deps.initAlerting(); err != nil {
		return nil, fmt.Errorf("failed to initialize alerting: %w", err)
	}

	deps.initDelivery()
	deps.initAuth()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	d.RepoFactory = postgres.NewRepositoryFactoryFromDB(d.DB, d.Config.Database.LockTimeout, d.Logger,
		postgres.WithCaptureObserver(d.Metrics))
	d.Repos = d.RepoFactory.NewRepositories()
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized",
		zap.Strings("tracked_tables", models.TrackedTables()))
}

func (d *Dependencies) initServices() {
	d.Records = &RecordServices{
		Patients:   records.NewService[*models.Patient](models.TablePatient, d.Repos.Patients, d.Logger),
		Doctors:    records.NewService[*models.Doctor](models.TableDoctor, d.Repos.Doctors, d.Logger),
		Staff:      records.NewService[*models.Staff](models.TableStaff, d.Repos.Staff, d.Logger),
		Medicals:   records.NewService[*models.Medical](models.TableMedical, d.Repos.Medicals, d.Logger),
		Facilities: records.NewService[*models.Facility](models.TableFacility, d.Repos.Facilities, d.Logger),
		Labs:       records.NewService[*models.Lab](models.TableLab, d.Repos.Labs, d.Logger),
	}
	d.Audit = audit.NewService(d.Repos.AuditLogs, d.Logger)
	d.Notifications = notifications.NewService(d.Repos.Alerts, d.Logger)
}

func (d *Dependencies) initAlerting() error {
	sc := d.Config.Scheduler
	loc, err := sc.Location()
	if err != nil {
		return err
	}

	expiry := alerting.NewExpiryRule(sc.ExpiryWindowDays, loc)
	d.Evaluator = alerting.NewEvaluator(d.Logger,
		alerting.NewLowStockRule(sc.LowStockThreshold),
		expiry,
	)
	dedup := alerting.NewDeduplicator(d.Repos.Alerts, nil, d.Logger)

	d.Scheduler = alerting.NewScheduler(
		d.TxManager,
		d.Repos.Inventory,
		d.Repos.Alerts,
		d.Evaluator,
		dedup,
		alerting.Config{InitialDelay: sc.InitialDelay, Period: sc.Period},
		d.Logger.Named("scheduler"),
		alerting.WithObserver(d.Metrics),
	)
	d.Dashboard = dashboard.NewService(d.Repos, expiry, nil, d.Logger)

	d.Logger.Info("alerting initialized",
		zap.Int("low_stock_threshold", sc.LowStockThreshold),
		zap.Int("expiry_window_days", sc.ExpiryWindowDays),
		zap.String("timezone", loc.String()),
		zap.Bool("periodic", sc.Enabled))
	return nil
}

func (d *Dependencies) initDelivery() {
	dc := d.Config.Delivery
	d.SeenWriter = delivery.NewSeenWriter(d.Notifications, d.Logger.Named("seen_writer"), delivery.WriterConfig{
		BufferSize:   dc.AckBuffer,
		WorkerCount:  dc.AckWorkers,
		WriteTimeout: dc.AckTimeout,
	})
}

// NewQueue builds a delivery queue showing alerts through presenter
func (d *Dependencies) NewQueue(presenter delivery.Presenter, opts ...delivery.QueueOption) *delivery.Queue {
	dc := d.Config.Delivery
	opts = append([]delivery.QueueOption{delivery.WithObserver(d.Metrics)}, opts...)
	return delivery.NewQueue(d.Notifications, presenter, d.SeenWriter,
		delivery.Config{DisplayTimeout: dc.DisplayTimeout, FetchLimit: dc.FetchLimit},
		d.Logger.Named("delivery"), opts...)
}

func (d *Dependencies) initAuth() {
	if !d.Config.Auth.Enabled() {
		d.Logger.Warn("JWT_SECRET not set, API authentication disabled")
		return
	}
	d.Tokens = middleware.NewHMACValidator(d.Config.Auth.JWTSecret, d.Config.Auth.JWTIssuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Tokens, d.Logger)
	d.Logger.Info("auth initialized", zap.String("issuer", d.Config.Auth.JWTIssuer))
}

// AuthEnabled reports whether API requests must carry a token
func (d *Dependencies) AuthEnabled() bool {
	return d.AuthMiddleware != nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.SeenWriter != nil && d.SeenWriter.Running() {
		timeout := d.Config.Delivery.AckTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.SeenWriter.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop seen writer: %w", err))
		}
	}

	// Close database connection
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
