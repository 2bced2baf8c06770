package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/services/alerting"
	"github.com/upb/hms-audit/utils"
	"go.uber.org/zap"
)

var errSchemaMissing = errors.New("audit schema not initialized; run migrate")

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// SchedulerState reports what the alert scheduler is doing
type SchedulerState interface {
	State() alerting.State
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db        *sql.DB
	scheduler SchedulerState
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. scheduler is nil when
// periodic evaluation is disabled.
func NewHealthHandler(db *sql.DB, scheduler SchedulerState, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		scheduler: scheduler,
		logger:    logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// Readiness check - the database must answer and hold the audit schema.
// The scheduler state is informational.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.checkDatabase(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"

		if err := h.checkSchema(ctx); err != nil {
			h.logger.Warn("schema check failed", zap.Error(err))
			checks["schema"] = "missing"
			allHealthy = false
		} else {
			checks["schema"] = "ready"
		}
	}

	if h.scheduler == nil {
		checks["scheduler"] = "disabled"
	} else {
		checks["scheduler"] = h.scheduler.State().String()
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return nil
	}

	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}

// checkSchema reports an error when migrate has not been run
func (h *HealthHandler) checkSchema(ctx context.Context) error {
	if h.db == nil {
		return nil
	}

	var present bool
	err := h.db.QueryRowContext(ctx,
		"SELECT to_regclass($1) IS NOT NULL AND to_regclass($2) IS NOT NULL",
		models.AuditLogTable, models.Alert{}.TableName(),
	).Scan(&present)
	if err != nil {
		return err
	}
	if !present {
		return errSchemaMissing
	}
	return nil
}
