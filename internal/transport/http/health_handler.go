package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"restmold/internal/database"
	"restmold/internal/registry"
)

// HealthHandler serves the API root info and liveness endpoints. It claims
// the /api prefix itself so the info endpoint sits at /api/.
type HealthHandler struct {
	pool     *database.Pool
	registry *registry.Registry
	logger   *slog.Logger
	appName  string
	version  string
	started  time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(pool *database.Pool, reg *registry.Registry, appName, version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		pool:     pool,
		registry: reg,
		logger:   logger.With(slog.String("handler", "health")),
		appName:  appName,
		version:  version,
		started:  time.Now(),
	}
}

// Name implements registry.Module
func (h *HealthHandler) Name() string { return "root" }

// Prefix implements registry.Module; the module claims /api directly.
func (h *HealthHandler) Prefix() string { return "/api" }

// Tags implements registry.Module
func (h *HealthHandler) Tags() []string { return []string{"system"} }

// Routes returns the health router.
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	return r
}

// Root handles GET /, describing the service and its mounted modules.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"name":    h.appName,
		"version": h.version,
		"status":  "running",
		"modules": h.registry.MountedModules(),
	})
}

// Health handles GET /health with a database connectivity check. A cold or
// unreachable pool degrades the status instead of failing the endpoint.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}

	dbStatus := "up"
	if err := h.pool.Ping(r.Context()); err != nil {
		dbStatus = "down"
		body["status"] = "degraded"
		h.logger.WarnContext(r.Context(), "health check database ping failed",
			slog.String("error", err.Error()))
	} else if stat, err := h.pool.Stat(); err == nil {
		body["database_pool"] = map[string]interface{}{
			"total_conns": stat.TotalConns(),
			"idle_conns":  stat.IdleConns(),
			"in_use":      stat.AcquiredConns(),
		}
	}
	body["database"] = dbStatus

	if body["status"] != "healthy" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, body)
}
