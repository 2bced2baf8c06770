package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/hms-audit/app"
	"github.com/upb/hms-audit/handlers"
	"github.com/upb/hms-audit/middleware"
	"github.com/upb/hms-audit/models"
	"go.uber.org/zap"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	logger := deps.Logger.Named("http")

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger, deps.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	var schedulerState handlers.SchedulerState
	if deps.Config.Scheduler.Enabled {
		schedulerState = deps.Scheduler
	}
	health := handlers.NewHealthHandler(deps.DB.DB, schedulerState, logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	viewer, editor := roleGuards(deps, logger)

	audit := handlers.NewAuditHandler(deps.Audit, logger)
	notifications := handlers.NewNotificationHandler(deps.Notifications, logger)
	alerts := handlers.NewAlertHandler(deps.Scheduler, deps.Config.Scheduler.Enabled, logger)
	dashboard := handlers.NewDashboardHandler(deps.Dashboard, logger)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/audit", func(r chi.Router) {
			r.Use(viewer...)
			r.Get("/", audit.HandleRecent)
			r.Get("/{table}", audit.HandleByTable)
			r.Get("/{table}/{entityID}", audit.HandleByEntity)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(viewer...)
			r.Get("/", notifications.HandleList)
			r.Get("/{id}", notifications.HandleGet)
			r.Post("/{id}/seen", notifications.HandleMarkSeen)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.With(viewer...).Get("/scheduler", alerts.HandleSchedulerStatus)
			r.With(editor...).Post("/evaluate", alerts.HandleEvaluate)
		})

		r.With(viewer...).Get("/dashboard", dashboard.HandleDashboard)

		rec := deps.Records
		mountRecords[*models.Patient](r, "/patients", rec.Patients, func() *models.Patient { return &models.Patient{} }, viewer, editor, logger)
		mountRecords[*models.Doctor](r, "/doctors", rec.Doctors, func() *models.Doctor { return &models.Doctor{} }, viewer, editor, logger)
		mountRecords[*models.Staff](r, "/staff", rec.Staff, func() *models.Staff { return &models.Staff{} }, viewer, editor, logger)
		mountRecords[*models.Medical](r, "/medical", rec.Medicals, func() *models.Medical { return &models.Medical{} }, viewer, editor, logger)
		mountRecords[*models.Facility](r, "/facilities", rec.Facilities, func() *models.Facility { return &models.Facility{} }, viewer, editor, logger)
		mountRecords[*models.Lab](r, "/labs", rec.Labs, func() *models.Lab { return &models.Lab{} }, viewer, editor, logger)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}

type guard = []func(http.Handler) http.Handler

// roleGuards returns the middleware chains for read and write routes.
// Without auth both chains are empty.
func roleGuards(deps *app.Dependencies, logger *zap.Logger) (viewer, editor guard) {
	if !deps.AuthEnabled() {
		logger.Warn("API routes are not protected")
		return nil, nil
	}
	auth := deps.AuthMiddleware
	viewer = guard{auth.RequireAuth, auth.RequireRole(middleware.RoleViewer)}
	editor = guard{auth.RequireAuth, auth.RequireRole(middleware.RoleEditor)}
	return viewer, editor
}

// mountRecords mounts list, get, create, update and delete for one table
func mountRecords[T models.TrackedEntity](
	r chi.Router,
	path string,
	svc handlers.RecordService[T],
	newFn func() T,
	viewer, editor guard,
	logger *zap.Logger,
) {
	h := handlers.NewRecordHandler[T](svc, newFn, logger)
	r.Route(path, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(viewer...)
			r.Get("/", h.HandleList)
			r.Get("/{id}", h.HandleGet)
		})
		r.Group(func(r chi.Router) {
			r.Use(editor...)
			r.Post("/", h.HandleCreate)
			r.Put("/{id}", h.HandleUpdate)
			r.Delete("/{id}", h.HandleDelete)
		})
	})
}
