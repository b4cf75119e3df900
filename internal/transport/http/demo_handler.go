package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"restmold/internal/apierrors"
)

// DemoHandler exposes routes that deliberately fail, so the error envelope
// can be exercised end to end from a running instance.
type DemoHandler struct {
	translator *apierrors.Translator
	logger     *slog.Logger
}

// NewDemoHandler creates a new demo handler
func NewDemoHandler(translator *apierrors.Translator, logger *slog.Logger) *DemoHandler {
	return &DemoHandler{
		translator: translator,
		logger:     logger.With(slog.String("handler", "demo")),
	}
}

// Name implements registry.Module
func (h *DemoHandler) Name() string { return "test" }

// Prefix implements registry.Module
func (h *DemoHandler) Prefix() string { return "" }

// Tags implements registry.Module
func (h *DemoHandler) Tags() []string { return []string{"diagnostics"} }

// Routes returns the demo router.
func (h *DemoHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/success", h.Success)
	r.Get("/not-found", h.NotFound)
	r.Get("/server-error", h.ServerError)
	r.Get("/unexpected-error", h.UnexpectedError)
	return r
}

// Success handles GET /success
func (h *DemoHandler) Success(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"message": "Everything is fine"})
}

// NotFound handles GET /not-found, returning a typed 404 with detail.
func (h *DemoHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.translator.Respond(w, r, apierrors.ErrNotFound.
		WithMessage("User not found").
		WithDetail(map[string]interface{}{"user_id": 123}))
}

// ServerError handles GET /server-error, returning a typed 500.
func (h *DemoHandler) ServerError(w http.ResponseWriter, r *http.Request) {
	h.translator.Respond(w, r, apierrors.ErrInternalServer)
}

// UnexpectedError handles GET /unexpected-error with an untyped error, so
// the response shows the debug-gated generic 500.
func (h *DemoHandler) UnexpectedError(w http.ResponseWriter, r *http.Request) {
	h.translator.Respond(w, r, errors.New("simulated unexpected failure"))
}
