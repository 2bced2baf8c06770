package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/services"
	"github.com/upb/hms-audit/services/records"
	"go.uber.org/zap"
)

// MockRecordService is a mock implementation of RecordService for medicines
type MockRecordService struct {
	mock.Mock
}

func (m *MockRecordService) Create(ctx context.Context, e *models.Medical) (*models.AuditEvent, error) {
	args := m.Called(ctx, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuditEvent), args.Error(1)
}

func (m *MockRecordService) Update(ctx context.Context, id string, e *models.Medical) (*models.AuditEvent, error) {
	args := m.Called(ctx, id, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuditEvent), args.Error(1)
}

func (m *MockRecordService) Delete(ctx context.Context, id string) (*models.AuditEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuditEvent), args.Error(1)
}

func (m *MockRecordService) Get(ctx context.Context, id string) (*models.Medical, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Medical), args.Error(1)
}

func (m *MockRecordService) List(ctx context.Context, limit, offset int) ([]*models.Medical, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Medical), args.Error(1)
}

func medicalRouter(svc RecordService[*models.Medical]) http.Handler {
	h := NewRecordHandler[*models.Medical](svc, func() *models.Medical { return &models.Medical{} }, zap.NewNop())
	r := chi.NewRouter()
	r.Get("/medical", h.HandleList)
	r.Post("/medical", h.HandleCreate)
	r.Get("/medical/{id}", h.HandleGet)
	r.Put("/medical/{id}", h.HandleUpdate)
	r.Delete("/medical/{id}", h.HandleDelete)
	return r
}

const paracetamolJSON = `{"id":"M1","name":"Paracetamol","manufacturer":"Acme","expiry_date":"2027-01-31","cost":4,"count":12}`

func insertEvent(id int64) *models.AuditEvent {
	m := &models.Medical{ID: "M1", Name: "Paracetamol"}
	snap, _ := models.SnapshotOf(m)
	ev := models.NewAuditEvent(models.TableMedical, models.AuditActionInsert).WithEntity("M1").WithNew(snap)
	ev.ID = id
	return ev
}

func TestRecordHandler_Create(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(MockRecordService)
		svc.On("Create", mock.Anything, mock.MatchedBy(func(m *models.Medical) bool {
			return m.ID == "M1" && m.Count == 12 && m.ExpiryDate == models.Date{Year: 2027, Month: 1, Day: 31}
		})).Return(insertEvent(11), nil).Once()

		w := httptest.NewRecorder()
		medicalRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/medical", strings.NewReader(paracetamolJSON)))

		assert.Equal(t, http.StatusCreated, w.Code)

		var response struct {
			Data struct {
				Audit struct {
					ID       int64  `json:"id"`
					Action   string `json:"action"`
					EntityID string `json:"entity_id"`
				} `json:"audit"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, int64(11), response.Data.Audit.ID)
		assert.Equal(t, "INSERT", response.Data.Audit.Action)
		assert.Equal(t, "M1", response.Data.Audit.EntityID)
		svc.AssertExpectations(t)
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantInBody string
	}{
		{
			name:       "malformed json",
			body:       `{"id":`,
			wantStatus: http.StatusBadRequest,
			wantInBody: "Invalid request body",
		},
		{
			name:       "unknown field",
			body:       `{"id":"M1","name":"x","expiry_date":"2027-01-31","price":3}`,
			wantStatus: http.StatusBadRequest,
			wantInBody: "Invalid request body",
		},
		{
			name:       "bad date",
			body:       `{"id":"M1","name":"x","expiry_date":"31/01/2027"}`,
			wantStatus: http.StatusBadRequest,
			wantInBody: "Invalid request body",
		},
		{
			name:       "missing expiry date",
			body:       `{"id":"M1","name":"x"}`,
			wantStatus: http.StatusBadRequest,
			wantInBody: "Validation failed",
		},
		{
			name:       "negative count",
			body:       `{"id":"M1","name":"x","expiry_date":"2027-01-31","count":-1}`,
			wantStatus: http.StatusBadRequest,
			wantInBody: "Validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockRecordService)

			w := httptest.NewRecorder()
			medicalRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/medical", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantInBody)
			svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}

	t.Run("duplicate", func(t *testing.T) {
		svc := new(MockRecordService)
		svc.On("Create", mock.Anything, mock.Anything).Return(nil, services.ErrDuplicateEntity).Once()

		w := httptest.NewRecorder()
		medicalRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/medical", strings.NewReader(paracetamolJSON)))

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestRecordHandler_Update(t *testing.T) {
	t.Run("id mismatch", func(t *testing.T) {
		svc := new(MockRecordService)
		svc.On("Update", mock.Anything, "M2", mock.Anything).
			Return(nil, records.ErrIDMismatch.Wrap(nil).WithDetail("path_id", "M2")).Once()

		w := httptest.NewRecorder()
		medicalRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/medical/M2", strings.NewReader(paracetamolJSON)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "path_id")
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockRecordService)
		svc.On("Update", mock.Anything, "M1", mock.Anything).Return(nil, services.ErrEntityNotFound).Once()

		w := httptest.NewRecorder()
		medicalRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/medical/M1", strings.NewReader(paracetamolJSON)))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("updated", func(t *testing.T) {
		svc := new(MockRecordService)
		ev := insertEvent(12)
		ev.Action = models.AuditActionUpdate
		ev.OldValues = ev.NewValues
		svc.On("Update", mock.Anything, "M1", mock.Anything).Return(ev, nil).Once()

		w := httptest.NewRecorder()
		medicalRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/medical/M1", strings.NewReader(paracetamolJSON)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"action":"UPDATE"`)
	})
}

func TestRecordHandler_GetListDelete(t *testing.T) {
	svc := new(MockRecordService)
	svc.On("Get", mock.Anything, "M1").Return(&models.Medical{ID: "M1", Name: "Paracetamol"}, nil).Once()
	svc.On("Get", mock.Anything, "M9").Return(nil, services.ErrEntityNotFound).Once()
	svc.On("List", mock.Anything, 10, 20).Return([]*models.Medical{{ID: "M1"}, {ID: "M2"}}, nil).Once()
	svc.On("Delete", mock.Anything, "M1").Return(insertEvent(13), nil).Once()

	router := medicalRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/medical/M1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Paracetamol"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/medical/M9", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/medical?limit=10&offset=20", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/medical?limit=ten", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/medical/M1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	svc.AssertExpectations(t)
}
