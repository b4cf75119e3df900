package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"restmold/internal/apierrors"
	"restmold/internal/database"
	"restmold/internal/models"
	"restmold/internal/repository"
)

// EventHandler serves the event CRUD surface plus calendar queries.
type EventHandler struct {
	pool       *database.Pool
	translator *apierrors.Translator
	logger     *slog.Logger
	now        func() time.Time
}

// NewEventHandler creates a new event handler
func NewEventHandler(pool *database.Pool, translator *apierrors.Translator, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		pool:       pool,
		translator: translator,
		logger:     logger.With(slog.String("handler", "event")),
		now:        time.Now,
	}
}

// Name implements registry.Module
func (h *EventHandler) Name() string { return "event" }

// Prefix implements registry.Module
func (h *EventHandler) Prefix() string { return "" }

// Tags implements registry.Module
func (h *EventHandler) Tags() []string { return []string{"calendar"} }

// Routes returns the event router.
func (h *EventHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/upcoming", h.Upcoming)
	r.Get("/date-range/search", h.ByDateRange)
	r.Get("/location/{location}", h.ByLocation)
	return r
}

const dateLayout = "2006-01-02"

// EventCreateRequest is the POST payload.
type EventCreateRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description,omitempty"`
	EventDate   string  `json:"event_date" validate:"required,datetime=2006-01-02"`
	EventTime   *string `json:"event_time,omitempty" validate:"omitempty,datetime=15:04"`
	Location    *string `json:"location,omitempty" validate:"omitempty,max=255"`
	Image       *string `json:"image,omitempty"`
}

// Bind implements the render.Binder interface
func (e *EventCreateRequest) Bind(r *http.Request) error {
	return validate.Struct(e)
}

// EventUpdateRequest is the PUT payload; nil fields stay untouched.
type EventUpdateRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty"`
	EventDate   *string `json:"event_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EventTime   *string `json:"event_time,omitempty" validate:"omitempty,datetime=15:04"`
	Location    *string `json:"location,omitempty" validate:"omitempty,max=255"`
	Image       *string `json:"image,omitempty"`
}

// Bind implements the render.Binder interface
func (e *EventUpdateRequest) Bind(r *http.Request) error {
	return validate.Struct(e)
}

func (e *EventUpdateRequest) changes() (repository.Changes, error) {
	changes := repository.Changes{}
	if e.Title != nil {
		changes["title"] = *e.Title
	}
	if e.Description != nil {
		changes["description"] = *e.Description
	}
	if e.EventDate != nil {
		date, err := time.Parse(dateLayout, *e.EventDate)
		if err != nil {
			return nil, apierrors.NewValidationError([]apierrors.FieldError{
				{Field: "event_date", Message: "must be a date in YYYY-MM-DD form"},
			})
		}
		changes["event_date"] = date
	}
	if e.EventTime != nil {
		changes["event_time"] = *e.EventTime
	}
	if e.Location != nil {
		changes["location"] = *e.Location
	}
	if e.Image != nil {
		changes["image"] = *e.Image
	}
	return changes, nil
}

// Create handles POST /
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	req := &EventCreateRequest{}
	if err := render.Bind(r, req); err != nil {
		h.translator.Respond(w, r, bindError(err))
		return
	}
	date, err := time.Parse(dateLayout, req.EventDate)
	if err != nil {
		h.translator.Respond(w, r, apierrors.NewValidationError([]apierrors.FieldError{
			{Field: "event_date", Message: "must be a date in YYYY-MM-DD form"},
		}))
		return
	}

	var created models.Event
	err = h.pool.WithSession(r.Context(), func(ctx context.Context, s *database.Session) error {
		repo, err := repository.NewEventRepository(s)
		if err != nil {
			return err
		}
		created, err = repo.Create(ctx, models.Event{
			Title:       req.Title,
			Description: req.Description,
			EventDate:   date,
			EventTime:   req.EventTime,
			Location:    req.Location,
			Image:       req.Image,
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

// List handles GET / with optional search and paging.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r, 100, 1000)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	repo, err := h.reader()
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	var events []models.Event
	if search := r.URL.Query().Get("search"); search != "" {
		events, err = repo.Search(r.Context(), search, page)
	} else {
		events, err = repo.GetAll(r.Context(), page)
	}
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	render.JSON(w, r, events)
}

// Get handles GET /{id}
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	repo, err := h.reader()
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	event, err := repo.GetByID(r.Context(), id)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	render.JSON(w, r, event)
}

// Update handles PUT /{id}
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	req := &EventUpdateRequest{}
	if err := render.Bind(r, req); err != nil {
		h.translator.Respond(w, r, bindError(err))
		return
	}
	changes, err := req.changes()
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	if len(changes) == 0 {
		h.translator.Respond(w, r, apierrors.ErrBadRequest.WithMessage("Update requires at least one field"))
		return
	}

	var updated models.Event
	err = h.pool.WithSession(r.Context(), func(ctx context.Context, s *database.Session) error {
		repo, err := repository.NewEventRepository(s)
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
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	err = h.pool.WithSession(r.Context(), func(ctx context.Context, s *database.Session) error {
		repo, err := repository.NewEventRepository(s)
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

// Upcoming handles GET /upcoming
func (h *EventHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r, 100, 1000)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	repo, err := h.reader()
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	today := h.now().Truncate(24 * time.Hour)
	events, err := repo.Upcoming(r.Context(), today, page)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	render.JSON(w, r, events)
}

// ByDateRange handles GET /date-range/search?from=&to=
func (h *EventHandler) ByDateRange(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	if from.After(to) {
		h.translator.Respond(w, r, apierrors.NewValidationError([]apierrors.FieldError{
			{Field: "from", Message: "must not be after to"},
		}))
		return
	}

	repo, err := h.reader()
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	events, err := repo.ByDateRange(r.Context(), from, to)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	render.JSON(w, r, events)
}

// ByLocation handles GET /location/{location}
func (h *EventHandler) ByLocation(w http.ResponseWriter, r *http.Request) {
	location := chi.URLParam(r, "location")
	page, err := parsePage(r, 100, 1000)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	repo, err := h.reader()
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}

	events, err := repo.ByLocation(r.Context(), location, page)
	if err != nil {
		h.translator.Respond(w, r, err)
		return
	}
	render.JSON(w, r, events)
}

func (h *EventHandler) reader() (*repository.EventRepository, error) {
	q, err := h.pool.Querier()
	if err != nil {
		return nil, err
	}
	return repository.NewEventReader(q)
}

func queryDate(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, apierrors.NewValidationError([]apierrors.FieldError{
			{Field: name, Message: "this field is required"},
		})
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, apierrors.NewValidationError([]apierrors.FieldError{
			{Field: name, Message: "must be a date in YYYY-MM-DD form"},
		})
	}
	return date, nil
}
