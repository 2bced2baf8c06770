package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/hms-audit/repositories"
	"github.com/upb/hms-audit/services"
	"go.uber.org/zap"
)

// State of the scheduler
type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "RUNNING"
	}
	return "IDLE"
}

// MarshalText renders the state name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome of one attempted cycle
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// CycleReport describes one attempted cycle
type CycleReport struct {
	ID         uuid.UUID     `json:"id"`
	Outcome    Outcome       `json:"outcome"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Candidates int           `json:"candidates"`
	Result     ApplyResult   `json:"result"`
	Err        error         `json:"-"`
}

// ErrorText returns the failure message or an empty string
func (r CycleReport) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// CycleObserver is told about every attempted cycle
type CycleObserver interface {
	ObserveCycle(report CycleReport)
}

// Config controls cycle timing
type Config struct {
	InitialDelay time.Duration
	Period       time.Duration
}

// DefaultConfig returns the default timing
func DefaultConfig() Config {
	return Config{
		InitialDelay: 30 * time.Second,
		Period:       60 * time.Second,
	}
}

// Scheduler runs evaluation cycles, at most one at a time. The state
// machine is IDLE or RUNNING; a cycle attempted while RUNNING is skipped.
type Scheduler struct {
	mu    sync.Mutex
	state State
	last  *CycleReport

	txm       repositories.TransactionManager
	inventory repositories.InventoryReader
	alerts    repositories.NotificationRepository
	evaluator *Evaluator
	dedup     *Deduplicator
	clock     repositories.Clock
	observer  CycleObserver
	cfg       Config
	logger    *zap.Logger
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock sets the evaluation clock
func WithClock(clock repositories.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithObserver sets the cycle observer
func WithObserver(o CycleObserver) Option {
	return func(s *Scheduler) { s.observer = o }
}

// NewScheduler creates a scheduler in the IDLE state
func NewScheduler(
	txm repositories.TransactionManager,
	inventory repositories.InventoryReader,
	alerts repositories.NotificationRepository,
	evaluator *Evaluator,
	dedup *Deduplicator,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		state:     StateIdle,
		txm:       txm,
		inventory: inventory,
		alerts:    alerts,
		evaluator: evaluator,
		dedup:     dedup,
		clock:     time.Now,
		cfg:       cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastReport returns the most recent non-skipped cycle report
func (s *Scheduler) LastReport() (CycleReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return CycleReport{}, false
	}
	return *s.last, true
}

func (s *Scheduler) tryEnter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return false
	}
	s.state = StateRunning
	return true
}

func (s *Scheduler) leave(report CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.last = &report
}

// TryRunCycle runs one cycle unless another is in flight. It never returns
// an error; failures are reported in the CycleReport.
func (s *Scheduler) TryRunCycle(ctx context.Context) (report CycleReport) {
	report = CycleReport{ID: uuid.New(), StartedAt: s.clock()}

	if !s.tryEnter() {
		report.Outcome = OutcomeSkipped
		s.logger.Debug("alert cycle skipped, previous cycle still running", zap.String("cycle_id", report.ID.String()))
		s.observe(report)
		return report
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			report.Outcome = OutcomeFailed
			report.Err = fmt.Errorf("cycle panicked: %v", p)
			report.Result = ApplyResult{}
		}
		report.Duration = time.Since(start)
		s.leave(report)
		s.logReport(report)
		s.observe(report)
	}()

	asOf := report.StartedAt
	_, err := services.WithTransactionResult(ctx, s.txm, func(txCtx context.Context, _ repositories.Transaction) (ApplyResult, error) {
		if err := s.alerts.AcquireDedupLock(txCtx); err != nil {
			return ApplyResult{}, err
		}

		candidates, err := s.evaluator.Evaluate(txCtx, s.inventory, asOf)
		if err != nil {
			return ApplyResult{}, err
		}
		report.Candidates = len(candidates)

		report.Result, err = s.dedup.Apply(txCtx, candidates)
		return report.Result, err
	})
	if err != nil {
		// rolled back, nothing was stored
		report.Outcome = OutcomeFailed
		report.Err = err
		report.Result = ApplyResult{}
		return report
	}

	report.Outcome = OutcomeCompleted
	return report
}

// RunNow runs one cycle and turns a skip into ErrCycleInProgress
func (s *Scheduler) RunNow(ctx context.Context) (CycleReport, error) {
	report := s.TryRunCycle(ctx)
	switch report.Outcome {
	case OutcomeSkipped:
		return report, services.ErrCycleInProgress
	case OutcomeFailed:
		return report, services.FromStore(report.Err, services.ErrEntityNotFound)
	}
	return report, nil
}

// Run runs one cycle immediately, the next after InitialDelay, then one
// every Period until ctx is cancelled. A cycle in flight at cancellation
// finishes or rolls back before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("alert scheduler started",
		zap.Duration("initial_delay", s.cfg.InitialDelay),
		zap.Duration("period", s.cfg.Period))

	s.TryRunCycle(ctx)

	timer := time.NewTimer(s.cfg.InitialDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		s.logger.Info("alert scheduler stopped")
		return nil
	case <-timer.C:
		s.TryRunCycle(ctx)
	}

	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("alert scheduler stopped")
			return nil
		case <-ticker.C:
			s.TryRunCycle(ctx)
		}
	}
}

func (s *Scheduler) observe(report CycleReport) {
	if s.observer != nil {
		s.observer.ObserveCycle(report)
	}
}

func (s *Scheduler) logReport(report CycleReport) {
	fields := []zap.Field{
		zap.String("cycle_id", report.ID.String()),
		zap.String("outcome", string(report.Outcome)),
		zap.Duration("duration", report.Duration),
		zap.Int("candidates", report.Candidates),
		zap.Int("inserted", report.Result.Inserted),
		zap.Int("skipped", report.Result.Skipped),
		zap.Int("dropped", report.Result.Dropped),
	}
	if report.Err != nil {
		s.logger.Warn("alert cycle failed", append(fields, zap.Error(report.Err))...)
		return
	}
	s.logger.Info("alert cycle completed", fields...)
}
