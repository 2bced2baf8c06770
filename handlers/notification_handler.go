package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/upb/hms-audit/middleware"
	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/utils"
	"go.uber.org/zap"
)

// NotificationService reads alerts and marks them seen
type NotificationService interface {
	ListUnseen(ctx context.Context, limit int) ([]*models.Alert, error)
	List(ctx context.Context, limit, offset int) ([]*models.Alert, error)
	Get(ctx context.Context, id int64) (*models.Alert, error)
	MarkSeen(ctx context.Context, id int64) error
}

// NotificationListResponse is a list of alerts
type NotificationListResponse struct {
	Alerts []*models.Alert `json:"alerts"`
	Count  int             `json:"count"`
}

// NotificationHandler handles notification requests
type NotificationHandler struct {
	svc    NotificationService
	logger *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(svc NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// HandleList handles GET /api/v1/notifications. By default only unseen
// alerts are returned, oldest first; ?all=true pages through every alert
// newest first.
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := utils.ParseOptionalInt(q.Get("limit"), "limit", 0)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	all, _ := strconv.ParseBool(q.Get("all"))
	var alerts []*models.Alert
	if all {
		offset, err := utils.ParseOptionalInt(q.Get("offset"), "offset", 0)
		if err != nil {
			HandleValidationError(w, err, h.logger)
			return
		}
		alerts, err = h.svc.List(r.Context(), limit, offset)
		if err != nil {
			HandleServiceError(w, err, h.logger)
			return
		}
	} else {
		alerts, err = h.svc.ListUnseen(r.Context(), limit)
		if err != nil {
			HandleServiceError(w, err, h.logger)
			return
		}
	}

	_ = utils.WriteOK(w, NotificationListResponse{Alerts: alerts, Count: len(alerts)})
}

// HandleGet handles GET /api/v1/notifications/{id}
func (h *NotificationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	alert, err := h.svc.Get(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, alert)
}

// HandleMarkSeen handles POST /api/v1/notifications/{id}/seen
func (h *NotificationHandler) HandleMarkSeen(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.svc.MarkSeen(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("notification marked seen",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("actor", middleware.ActorFromContext(r.Context())),
		zap.Int64("alert_id", id))
	utils.WriteNoContent(w)
}
