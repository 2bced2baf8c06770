package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/hms-audit/middleware"
	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/utils"
	"go.uber.org/zap"
)

// RecordService reads and writes one tracked table
type RecordService[T models.TrackedEntity] interface {
	Create(ctx context.Context, e T) (*models.AuditEvent, error)
	Update(ctx context.Context, id string, e T) (*models.AuditEvent, error)
	Delete(ctx context.Context, id string) (*models.AuditEvent, error)
	Get(ctx context.Context, id string) (T, error)
	List(ctx context.Context, limit, offset int) ([]T, error)
}

// RecordListResponse is a page of rows
type RecordListResponse[T models.TrackedEntity] struct {
	Records []T `json:"records"`
	Count   int `json:"count"`
	Limit   int `json:"limit"`
	Offset  int `json:"offset"`
}

// RecordWriteResponse carries the audit event captured for a write
type RecordWriteResponse struct {
	Audit *models.AuditEvent `json:"audit"`
}

// RecordHandler exposes create, read, update and delete for one table
type RecordHandler[T models.TrackedEntity] struct {
	svc    RecordService[T]
	newFn  func() T
	logger *zap.Logger
}

// NewRecordHandler creates a handler; newFn returns an empty row to decode into
func NewRecordHandler[T models.TrackedEntity](svc RecordService[T], newFn func() T, logger *zap.Logger) *RecordHandler[T] {
	return &RecordHandler[T]{
		svc:    svc,
		newFn:  newFn,
		logger: logger.With(zap.String("table", newFn().TableName())),
	}
}

// HandleList handles GET /api/v1/{table}
func (h *RecordHandler[T]) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := utils.ParseOptionalInt(q.Get("limit"), "limit", 0)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	offset, err := utils.ParseOptionalInt(q.Get("offset"), "offset", 0)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	rows, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, RecordListResponse[T]{Records: rows, Count: len(rows), Limit: limit, Offset: offset})
}

// HandleGet handles GET /api/v1/{table}/{id}
func (h *RecordHandler[T]) HandleGet(w http.ResponseWriter, r *http.Request) {
	row, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, row)
}

// HandleCreate handles POST /api/v1/{table}
func (h *RecordHandler[T]) HandleCreate(w http.ResponseWriter, r *http.Request) {
	row, ok := h.decode(w, r)
	if !ok {
		return
	}

	ev, err := h.svc.Create(r.Context(), row)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.logWrite(r, ev)
	_ = utils.WriteCreated(w, RecordWriteResponse{Audit: ev})
}

// HandleUpdate handles PUT /api/v1/{table}/{id}
func (h *RecordHandler[T]) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	row, ok := h.decode(w, r)
	if !ok {
		return
	}

	ev, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), row)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.logWrite(r, ev)
	_ = utils.WriteOK(w, RecordWriteResponse{Audit: ev})
}

// HandleDelete handles DELETE /api/v1/{table}/{id}
func (h *RecordHandler[T]) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ev, err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.logWrite(r, ev)
	_ = utils.WriteOK(w, RecordWriteResponse{Audit: ev})
}

func (h *RecordHandler[T]) decode(w http.ResponseWriter, r *http.Request) (T, bool) {
	row := h.newFn()
	if err := utils.DecodeJSON(r, row); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", map[string]interface{}{"body": err.Error()})
		return row, false
	}
	if err := utils.ValidateStruct(row); err != nil {
		HandleValidationError(w, err, h.logger)
		return row, false
	}
	return row, true
}

func (h *RecordHandler[T]) logWrite(r *http.Request, ev *models.AuditEvent) {
	fields := []zap.Field{
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("actor", middleware.ActorFromContext(r.Context())),
		zap.String("action", string(ev.Action)),
		zap.Int64("audit_id", ev.ID),
	}
	if ev.EntityID != nil {
		fields = append(fields, zap.String("entity_id", *ev.EntityID))
	}
	h.logger.Info("record written", fields...)
}
