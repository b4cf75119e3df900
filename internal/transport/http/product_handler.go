package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"restmold/internal/apierrors"
	"restmold/internal/database"
	"restmold/internal/models"
	"restmold/internal/repository"
)

// ProductHandler serves the product CRUD surface.
type ProductHandler struct {
	pool       *database.Pool
	translator *apierrors.Translator
	logger     *slog.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(pool *database.Pool, translator *apierrors.Translator, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		pool:       pool,
		translator: translator,
		logger:     logger.With(slog.String("handler", "product")),
	}
}

// Name implements registry.Module
func (h *ProductHandler) Name() string { return "product" }

// Prefix implements registry.Module; empty means the registry derives it.
func (h *ProductHandler) Prefix() string { return "" }

// Tags implements registry.Module
func (h *ProductHandler) Tags() []string { return []string{"catalog"} }

// Routes returns the product router.
func (h *ProductHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/department/{department}", h.ByDepartment)
	r.Get("/price-range/search", h.ByPriceRange)
	return r
}

// ProductCreateRequest is the POST payload.
type ProductCreateRequest struct {
	Name       string   `json:"name" validate:"required,max=255"`
	Department string   `json:"department" validate:"required,max=255"`
	Price      float64  `json:"price" validate:"required,gt=0"`
	Weight     *float64 `json:"weight,omitempty" validate:"omitempty,gt=0"`
}

// Bind implements the render.Binder interface
func (p *ProductCreateRequest) Bind(r *http.Request) error {
	return validate.Struct(p)
}

// ProductUpdateRequest is the PUT payload; nil fields stay untouched.
type ProductUpdateRequest struct {
	Name       *string  `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Department *string  `json:"department,omitempty" validate:"omitempty,min=1,max=255"`
	Price      *float64 `json:"price,omitempty" validate:"omitempty,gt=0"`
	Weight     *float64 `json:"weight,omitempty" validate:"omitempty,gt=0"`
}

// Bind implements the render.Binder interface
func (p *ProductUpdateRequest) Bind(r *http.Request) error {
	return validate.Struct(p)
}

func (p *ProductUpdateRequest) changes() repository.Changes {
	changes := repository.Changes{}
	if p.Name != nil {
		changes["name"] = *p.Name
	}
	if p.Department != nil {
		changes["department"] = *p.Department
	}
	if p.Price != nil {
		changes["price"] = *p.Price
	}
	if p.Weight != nil {
		changes["weight"] = *p.Weight
	}
	return changes
}

// Create handles POST /
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	req := &ProductCreateRequest{}
	if err := render.Bind(r, req); err != nil {
		h.translator.Respond(w, r, bindError(err))
		return
	}

	var created models.Product
	err := h.pool.WithSession(r.Context(), func(ctx context.Context, s *database.Session) error {
		repo, err := repository.NewProductRepository(s)
		if err != nil {
			return err
		}
		created, err = repo.Create(ctx, models.Product{
			Name:       req.Name,
			Department: req.Department,
			Price:      req.Price,
			Weight:     req.Weight,
		})
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

// List handles GET / with optional search, department, and paging.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
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
	repo, err := repository.NewProductReader(q)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	search := r.URL.Query().Get("search")
	department := r.URL.Query().Get("department")

	var products []models.Product
	switch {
	case search != "":
		products, err = repo.Search(r.Context(), search, department, page)
	case department != "":
		products, err = repo.Filter(r.Context(), repository.Filters{repository.Eq("department", department)}, page)
	default:
		products, err = repo.GetAll(r.Context(), page)
	}
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	render.JSON(w, r, products)
}

// Get handles GET /{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	repo, err := repository.NewProductReader(q)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	product, err := repo.GetByID(r.Context(), id)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	render.JSON(w, r, product)
}

// Update handles PUT /{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	req := &ProductUpdateRequest{}
	if err := render.Bind(r, req); err != nil {
		h.translator.Respond(w, r, bindError(err))
		return
	}
	changes := req.changes()
	if len(changes) == 0 {
		h.translator.Respond(w, r, apierrors.ErrBadRequest.WithMessage("Update requires at least one field"))
		return
	}

	var updated models.Product
	err = h.pool.WithSession(r.Context(), func(ctx context.Context, s *database.Session) error {
		repo, err := repository.NewProductRepository(s)
		if err != nil {
			return err
		}
		updated, err = repo.Update(ctx, id, changes)
		if err != nil {
			return err
		}
		return repo.Commit(ctx)
	})
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	render.JSON(w, r, updated)
}

// Delete handles DELETE /{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	err = h.pool.WithSession(r.Context(), func(ctx context.Context, s *database.Session) error {
		repo, err := repository.NewProductRepository(s)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, id); err != nil {
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

// ByDepartment handles GET /department/{department}
func (h *ProductHandler) ByDepartment(w http.ResponseWriter, r *http.Request) {
	department := chi.URLParam(r, "department")
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
	repo, err := repository.NewProductReader(q)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	products, err := repo.Filter(r.Context(), repository.Filters{repository.Eq("department", department)}, page)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	render.JSON(w, r, products)
}

// ByPriceRange handles GET /price-range/search?min_price=&max_price=
func (h *ProductHandler) ByPriceRange(w http.ResponseWriter, r *http.Request) {
	minPrice, err := queryFloat(r, "min_price", 0)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	maxPrice, err := queryFloat(r, "max_price", -1)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	if maxPrice < 0 {
		h.translator.Respond(w, r,
			apierrors.NewValidationError([]apierrors.FieldError{{Field: "max_price", Message: "this field is required"}}))
		return
	}
	if minPrice > maxPrice {
		h.translator.Respond(w, r,
			apierrors.NewValidationError([]apierrors.FieldError{{Field: "min_price", Message: "must not exceed max_price"}}))
		return
	}

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
	repo, err := repository.NewProductReader(q)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	products, err := repo.ByPriceRange(r.Context(), minPrice, maxPrice, page)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	render.JSON(w, r, products)
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierrors.NewValidationError([]apierrors.FieldError{
			{Field: "id", Message: "must be a positive integer"},
		})
	}
	return id, nil
}

// parsePage reads limit and offset query parameters, clamping limit into
// [1, max] with the given default.
func parsePage(r *http.Request, defaultLimit, maxLimit int) (repository.Page, error) {
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil {
		return repository.Page{}, err
	}
	if limit < 1 || limit > maxLimit {
		return repository.Page{}, apierrors.NewValidationError([]apierrors.FieldError{
			{Field: "limit", Message: "must be between 1 and " + strconv.Itoa(maxLimit)},
		})
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		return repository.Page{}, err
	}
	if offset < 0 {
		return repository.Page{}, apierrors.NewValidationError([]apierrors.FieldError{
			{Field: "offset", Message: "must not be negative"},
		})
	}
	return repository.Page{Limit: limit, Offset: offset}, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierrors.NewValidationError([]apierrors.FieldError{
			{Field: name, Message: "must be an integer"},
		})
	}
	return value, nil
}

func queryFloat(r *http.Request, name string, fallback float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apierrors.NewValidationError([]apierrors.FieldError{
			{Field: name, Message: "must be a number"},
		})
	}
	return value, nil
}

// bindError distinguishes malformed JSON from failed validation: validator
// errors pass through so the translator renders 422, everything else is a
// plain 400.
func bindError(err error) error {
	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		return err
	}
	return apierrors.ErrBadRequest.WithMessage("Invalid request body").WithDetail(err.Error())
}
