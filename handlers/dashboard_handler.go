package handlers

import (
	"context"
	"net/http"

	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/utils"
	"go.uber.org/zap"
)

// DashboardBuilder assembles the overview
type DashboardBuilder interface {
	Build(ctx context.Context) (*models.Dashboard, error)
}

// DashboardHandler serves the overview screen
type DashboardHandler struct {
	builder DashboardBuilder
	logger  *zap.Logger
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(builder DashboardBuilder, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{builder: builder, logger: logger}
}

// HandleDashboard handles GET /api/v1/dashboard
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.builder.Build(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, d)
}
