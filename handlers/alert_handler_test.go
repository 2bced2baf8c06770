package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/hms-audit/services"
	"github.com/upb/hms-audit/services/alerting"
	"go.uber.org/zap"
)

// MockCycleRunner is a mock implementation of CycleRunner
type MockCycleRunner struct {
	mock.Mock
}

func (m *MockCycleRunner) RunNow(ctx context.Context) (alerting.CycleReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(alerting.CycleReport), args.Error(1)
}

func (m *MockCycleRunner) State() alerting.State {
	return m.Called().Get(0).(alerting.State)
}

func (m *MockCycleRunner) LastReport() (alerting.CycleReport, bool) {
	args := m.Called()
	return args.Get(0).(alerting.CycleReport), args.Bool(1)
}

func completedReport() alerting.CycleReport {
	return alerting.CycleReport{
		ID:         uuid.MustParse("6f1c2a9e-8d4b-4a3e-9f0a-1b2c3d4e5f60"),
		Outcome:    alerting.OutcomeCompleted,
		StartedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Duration:   42 * time.Millisecond,
		Candidates: 3,
		Result:     alerting.ApplyResult{Inserted: 2, Skipped: 1},
	}
}

func TestAlertHandler_Evaluate(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		runner := new(MockCycleRunner)
		runner.On("RunNow", mock.Anything).Return(completedReport(), nil).Once()

		w := httptest.NewRecorder()
		NewAlertHandler(runner, true, zap.NewNop()).
			HandleEvaluate(w, httptest.NewRequest(http.MethodPost, "/alerts/evaluate", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Data CycleResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, alerting.OutcomeCompleted, response.Data.Outcome)
		assert.Equal(t, int64(42), response.Data.DurationMS)
		assert.Equal(t, 3, response.Data.Candidates)
		assert.Equal(t, 2, response.Data.Inserted)
		assert.Equal(t, 1, response.Data.Skipped)
		assert.Empty(t, response.Data.Error)
		runner.AssertExpectations(t)
	})

	t.Run("cycle already running", func(t *testing.T) {
		runner := new(MockCycleRunner)
		runner.On("RunNow", mock.Anything).
			Return(alerting.CycleReport{Outcome: alerting.OutcomeSkipped}, services.ErrCycleInProgress).Once()

		w := httptest.NewRecorder()
		NewAlertHandler(runner, true, zap.NewNop()).
			HandleEvaluate(w, httptest.NewRequest(http.MethodPost, "/alerts/evaluate", nil))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "alert cycle already running")
	})

	t.Run("store failure hides cause", func(t *testing.T) {
		runner := new(MockCycleRunner)
		cause := errors.New("pq: connection refused on 10.0.0.5")
		runner.On("RunNow", mock.Anything).
			Return(alerting.CycleReport{Outcome: alerting.OutcomeFailed, Err: cause}, services.ErrStoreUnavailable.Wrap(cause)).Once()

		w := httptest.NewRecorder()
		NewAlertHandler(runner, false, zap.NewNop()).
			HandleEvaluate(w, httptest.NewRequest(http.MethodPost, "/alerts/evaluate", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "10.0.0.5")
	})
}

func TestAlertHandler_SchedulerStatus(t *testing.T) {
	t.Run("with last cycle", func(t *testing.T) {
		runner := new(MockCycleRunner)
		runner.On("State").Return(alerting.StateRunning)
		runner.On("LastReport").Return(completedReport(), true)

		w := httptest.NewRecorder()
		NewAlertHandler(runner, true, zap.NewNop()).
			HandleSchedulerStatus(w, httptest.NewRequest(http.MethodGet, "/alerts/scheduler", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Data struct {
				State     string         `json:"state"`
				Periodic  bool           `json:"periodic"`
				LastCycle *CycleResponse `json:"last_cycle"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "RUNNING", response.Data.State)
		assert.True(t, response.Data.Periodic)
		require.NotNil(t, response.Data.LastCycle)
		assert.Equal(t, 2, response.Data.LastCycle.Inserted)
	})

	t.Run("no cycle yet", func(t *testing.T) {
		runner := new(MockCycleRunner)
		runner.On("State").Return(alerting.StateIdle)
		runner.On("LastReport").Return(alerting.CycleReport{}, false)

		w := httptest.NewRecorder()
		NewAlertHandler(runner, false, zap.NewNop()).
			HandleSchedulerStatus(w, httptest.NewRequest(http.MethodGet, "/alerts/scheduler", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":{"state":"IDLE","periodic":false}}`, w.Body.String())
	})
}

func TestNewCycleResponse_CarriesError(t *testing.T) {
	r := alerting.CycleReport{Outcome: alerting.OutcomeFailed, Err: errors.New("lock wait timed out")}
	assert.Equal(t, "lock wait timed out", NewCycleResponse(r).Error)
}
