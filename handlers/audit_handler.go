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

// defaultAuditLimit applies when the limit query parameter is absent
const defaultAuditLimit = 100

// AuditQuerier answers audit log queries
type AuditQuerier interface {
	Recent(ctx context.Context, limit int) ([]*models.AuditEvent, error)
	ByTable(ctx context.Context, table string, limit int) ([]*models.AuditEvent, error)
	ByEntity(ctx context.Context, table, entityID string, limit int) ([]*models.AuditEvent, error)
}

// AuditListResponse is a page of audit events, newest first
type AuditListResponse struct {
	Events []*models.AuditEvent `json:"events"`
	Count  int                  `json:"count"`
}

// AuditHandler handles audit log queries
type AuditHandler struct {
	svc    AuditQuerier
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(svc AuditQuerier, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{svc: svc, logger: logger}
}

// HandleRecent handles GET /api/v1/audit
func (h *AuditHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	events, err := h.svc.Recent(r.Context(), limit)
	h.respond(w, r, events, err)
}

// HandleByTable handles GET /api/v1/audit/{table}
func (h *AuditHandler) HandleByTable(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	events, err := h.svc.ByTable(r.Context(), chi.URLParam(r, "table"), limit)
	h.respond(w, r, events, err)
}

// HandleByEntity handles GET /api/v1/audit/{table}/{entityID}
func (h *AuditHandler) HandleByEntity(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	events, err := h.svc.ByEntity(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "entityID"), limit)
	h.respond(w, r, events, err)
}

func (h *AuditHandler) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit, err := utils.ParseOptionalInt(r.URL.Query().Get("limit"), "limit", defaultAuditLimit)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return 0, false
	}
	return limit, true
}

func (h *AuditHandler) respond(w http.ResponseWriter, r *http.Request, events []*models.AuditEvent, err error) {
	if err != nil {
		h.logger.Debug("audit query failed",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, AuditListResponse{Events: events, Count: len(events)})
}
