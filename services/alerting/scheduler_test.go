package alerting

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/repositories"
	"github.com/upb/hms-audit/repositories/repotest"
	"github.com/upb/hms-audit/services"
	"go.uber.org/zap"
)

// memAlerts keeps alerts in memory with the same dedup rule as the store
type memAlerts struct {
	mu      sync.Mutex
	alerts  []*models.Alert
	lockErr error
}

func (m *memAlerts) AcquireDedupLock(context.Context) error { return m.lockErr }

func (m *memAlerts) InsertIfUnseenAbsent(_ context.Context, c models.CandidateAlert, createdAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if !a.Seen && c.SameKey(a) {
			return false, nil
		}
	}
	m.alerts = append(m.alerts, &models.Alert{
		ID:        int64(len(m.alerts) + 1),
		CreatedAt: createdAt,
		Severity:  c.Severity,
		Title:     c.Title,
		Detail:    c.Detail,
	})
	return true, nil
}

func (m *memAlerts) ListUnseen(context.Context, int) ([]*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Alert
	for _, a := range m.alerts {
		if !a.Seen {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAlerts) List(context.Context, int, int) ([]*models.Alert, error) { return m.alerts, nil }

func (m *memAlerts) GetByID(_ context.Context, id int64) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memAlerts) MarkSeen(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == id {
			a.Seen = true
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *memAlerts) CountUnseen(ctx context.Context) (int, error) {
	unseen, _ := m.ListUnseen(ctx, 0)
	return len(unseen), nil
}

type recordingCycles struct {
	mu      sync.Mutex
	reports []CycleReport
}

func (r *recordingCycles) ObserveCycle(report CycleReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

func (r *recordingCycles) outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, 0, len(r.reports))
	for _, rep := range r.reports {
		out = append(out, rep.Outcome)
	}
	return out
}

type fixture struct {
	txm       *repotest.TransactionManager
	inventory *repotest.InventoryReader
	alerts    *memAlerts
	observer  *recordingCycles
	scheduler *Scheduler
}

func newFixture(t *testing.T, rules ...Rule) *fixture {
	t.Helper()
	f := &fixture{
		txm:       &repotest.TransactionManager{},
		inventory: new(repotest.InventoryReader),
		alerts:    &memAlerts{},
		observer:  &recordingCycles{},
	}
	if len(rules) == 0 {
		rules = []Rule{NewLowStockRule(10), NewExpiryRule(30, nil)}
	}
	logger := zap.NewNop()
	f.scheduler = NewScheduler(
		f.txm,
		f.inventory,
		f.alerts,
		NewEvaluator(logger, rules...),
		NewDeduplicator(f.alerts, fixedClock, logger),
		Config{InitialDelay: 5 * time.Millisecond, Period: 5 * time.Millisecond},
		logger,
		WithClock(fixedClock),
		WithObserver(f.observer),
	)
	return f
}

func TestScheduler_LowStockCycleIsIdempotent(t *testing.T) {
	f := newFixture(t)
	aspirin := medical("M1", "Aspirin", 5, models.NewDate(2027, 1, 1))
	f.inventory.On("ListLowStock", mock.Anything, 10).Return([]*models.Medical{aspirin}, nil)
	f.inventory.On("ListExpiringBy", mock.Anything, mock.Anything).Return([]*models.Medical{}, nil)

	report := f.scheduler.TryRunCycle(context.Background())
	require.Equal(t, OutcomeCompleted, report.Outcome)
	assert.Equal(t, ApplyResult{Inserted: 1}, report.Result)
	assert.Equal(t, 1, report.Candidates)

	unseen, _ := f.alerts.ListUnseen(context.Background(), 0)
	require.Len(t, unseen, 1)
	assert.Equal(t, models.SeverityWarn, unseen[0].Severity)
	assert.Contains(t, unseen[0].Title, "Aspirin")
	assert.Contains(t, unseen[0].DetailText(), "5")

	report = f.scheduler.TryRunCycle(context.Background())
	require.Equal(t, OutcomeCompleted, report.Outcome)
	assert.Equal(t, ApplyResult{Skipped: 1}, report.Result)

	n, _ := f.alerts.CountUnseen(context.Background())
	assert.Equal(t, 1, n)

	commits, rollbacks := f.txm.Outcomes()
	assert.Equal(t, 2, commits)
	assert.Equal(t, 0, rollbacks)
	assert.Equal(t, StateIdle, f.scheduler.State())
}

func TestScheduler_RealertsAfterSeen(t *testing.T) {
	f := newFixture(t)
	aspirin := medical("M1", "Aspirin", 5, models.NewDate(2027, 1, 1))
	f.inventory.On("ListLowStock", mock.Anything, 10).Return([]*models.Medical{aspirin}, nil)
	f.inventory.On("ListExpiringBy", mock.Anything, mock.Anything).Return([]*models.Medical{}, nil)

	f.scheduler.TryRunCycle(context.Background())
	require.NoError(t, f.alerts.MarkSeen(context.Background(), 1))

	report := f.scheduler.TryRunCycle(context.Background())
	assert.Equal(t, ApplyResult{Inserted: 1}, report.Result)

	all, _ := f.alerts.List(context.Background(), 10, 0)
	require.Len(t, all, 2)
	assert.True(t, all[0].Seen)
	assert.False(t, all[1].Seen)
	assert.Equal(t, all[0].Title, all[1].Title)
	assert.Equal(t, all[0].DetailText(), all[1].DetailText())
}

func TestScheduler_FailedCycleReturnsToIdle(t *testing.T) {
	f := newFixture(t)
	f.alerts.lockErr = fmt.Errorf("acquire: %w", repositories.ErrLockTimeout)

	report := f.scheduler.TryRunCycle(context.Background())
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.ErrorIs(t, report.Err, repositories.ErrLockTimeout)
	assert.Equal(t, StateIdle, f.scheduler.State())

	_, rollbacks := f.txm.Outcomes()
	assert.Equal(t, 1, rollbacks)

	last, ok := f.scheduler.LastReport()
	require.True(t, ok)
	assert.Equal(t, report.ID, last.ID)

	_, err := f.scheduler.RunNow(context.Background())
	assert.True(t, services.IsContentionError(err))
}

func TestScheduler_FailedCycleStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.inventory.On("ListLowStock", mock.Anything, 10).
		Return([]*models.Medical{medical("M1", "Aspirin", 1, models.NewDate(2027, 1, 1))}, nil)
	f.inventory.On("ListExpiringBy", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("query: %w", repositories.ErrTransactionLost))

	report := f.scheduler.TryRunCycle(context.Background())
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, ApplyResult{}, report.Result)
	assert.Equal(t, StateIdle, f.scheduler.State())
}

type panicRule struct{}

func (panicRule) Name() string { return "panic" }

func (panicRule) Evaluate(context.Context, repositories.InventoryReader, time.Time) ([]models.CandidateAlert, error) {
	panic("rule bug")
}

func TestScheduler_PanicReturnsToIdle(t *testing.T) {
	f := newFixture(t, panicRule{})

	report := f.scheduler.TryRunCycle(context.Background())
	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Contains(t, report.ErrorText(), "rule bug")
	assert.Equal(t, StateIdle, f.scheduler.State())

	_, rollbacks := f.txm.Outcomes()
	assert.Equal(t, 1, rollbacks)

	report = f.scheduler.TryRunCycle(context.Background())
	assert.Equal(t, OutcomeFailed, report.Outcome)
}

// blockingRule holds the cycle open until released
type blockingRule struct {
	started chan struct{}
	release chan struct{}
	runs    atomic.Int32
}

func (r *blockingRule) Name() string { return "blocking" }

func (r *blockingRule) Evaluate(context.Context, repositories.InventoryReader, time.Time) ([]models.CandidateAlert, error) {
	r.runs.Add(1)
	r.started <- struct{}{}
	<-r.release
	return nil, nil
}

func TestScheduler_SkipsWhileRunning(t *testing.T) {
	rule := &blockingRule{started: make(chan struct{}, 1), release: make(chan struct{})}
	f := newFixture(t, rule)

	done := make(chan CycleReport, 1)
	go func() { done <- f.scheduler.TryRunCycle(context.Background()) }()
	<-rule.started
	assert.Equal(t, StateRunning, f.scheduler.State())

	var wg sync.WaitGroup
	skipped := atomic.Int32{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.scheduler.TryRunCycle(context.Background()).Outcome == OutcomeSkipped {
				skipped.Add(1)
			}
		}()
	}
	wg.Wait()

	_, err := f.scheduler.RunNow(context.Background())
	assert.ErrorIs(t, err, services.ErrCycleInProgress)

	close(rule.release)
	first := <-done

	assert.Equal(t, OutcomeCompleted, first.Outcome)
	assert.Equal(t, int32(8), skipped.Load())
	assert.Equal(t, int32(1), rule.runs.Load())
	assert.Equal(t, StateIdle, f.scheduler.State())

	outcomes := f.observer.outcomes()
	assert.Len(t, outcomes, 10)
	assert.Equal(t, OutcomeCompleted, outcomes[len(outcomes)-1])
}

type countingRule struct {
	runs atomic.Int32
}

func (r *countingRule) Name() string { return "counting" }

func (r *countingRule) Evaluate(context.Context, repositories.InventoryReader, time.Time) ([]models.CandidateAlert, error) {
	r.runs.Add(1)
	return nil, nil
}

func TestScheduler_RunTicksUntilCancelled(t *testing.T) {
	rule := &countingRule{}
	f := newFixture(t, rule)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.scheduler.Run(ctx) }()

	require.Eventually(t, func() bool { return rule.runs.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, StateIdle, f.scheduler.State())
}

func TestScheduler_RunStopsBeforeFirstTick(t *testing.T) {
	rule := &countingRule{}
	f := newFixture(t, rule)
	f.scheduler.cfg = Config{InitialDelay: time.Hour, Period: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.scheduler.Run(ctx) }()

	require.Eventually(t, func() bool { return rule.runs.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)
	assert.Equal(t, int32(1), rule.runs.Load())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "RUNNING", StateRunning.String())
	text, err := StateRunning.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", string(text))
}
