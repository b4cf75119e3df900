package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"restmold/internal/apierrors"
	"restmold/internal/database"
	"restmold/internal/models"
	"restmold/internal/repository"
)

// ImageHandler serves stored image metadata. Deletes are soft: the row keeps
// its path and gains a deletion timestamp.
type ImageHandler struct {
	pool       *database.Pool
	translator *apierrors.Translator
	logger     *slog.Logger
}

// NewImageHandler creates a new image handler
func NewImageHandler(pool *database.Pool, translator *apierrors.Translator, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		pool:       pool,
		translator: translator,
		logger:     logger.With(slog.String("handler", "image")),
	}
}

// Name implements registry.Module
func (h *ImageHandler) Name() string { return "image" }

// Prefix implements registry.Module
func (h *ImageHandler) Prefix() string { return "" }

// Tags implements registry.Module
func (h *ImageHandler) Tags() []string { return []string{"media"} }

// Routes returns the image router.
func (h *ImageHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	return r
}

// ImageCreateRequest is the POST payload.
type ImageCreateRequest struct {
	Path    string  `json:"path" validate:"required,max=1024"`
	Caption *string `json:"caption,omitempty" validate:"omitempty,max=1024"`
}

// Bind implements the render.Binder interface
func (i *ImageCreateRequest) Bind(r *http.Request) error {
	return validate.Struct(i)
}

// Create handles POST /. A duplicate path surfaces as a 409 integrity error
// from the unique constraint.
func (h *ImageHandler) Create(w http.ResponseWriter, r *http.Request) {
	req := &ImageCreateRequest{}
	if err := render.Bind(r, req); err != nil {
		h.translator.Respond(w, r, bindError(err))
		return
	}

	var created models.Image
	err := h.pool.WithSession(r.Context(), func(ctx context.Context, s *database.Session) error {
		repo, err := repository.NewImageRepository(s)
		if err != nil {
			return err
		}
		created, err = repo.Create(ctx, models.Image{Path: req.Path, Caption: req.Caption})
		if err != nil {
			return err
		}
		return repo.Commit(ctx)
	})
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, created)
}

// List handles GET /, returning only images that are not soft deleted.
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r, 100, 1000)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	q, err := h.pool.Querier()
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	repo, err := repository.NewImageReader(q)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	images, err := repo.Active(r.Context(), page)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	render.JSON(w, r, images)
}

// Get handles GET /{id}
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	q, err := h.pool.Querier()
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	repo, err := repository.NewImageReader(q)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	image, err := repo.GetByID(r.Context(), id)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	render.JSON(w, r, image)
}

// Delete handles DELETE /{id} as a soft delete.
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	err = h.pool.WithSession(r.Context(), func(ctx context.Context, s *database.Session) error {
		repo, err := repository.NewImageRepository(s)
		if err != nil {
			return err
		}
		if err := repo.SoftDelete(ctx, id); err != nil {
			return err
		}
		return repo.Commit(ctx)
	})
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	render.NoContent(w, r)
}
