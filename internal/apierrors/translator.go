package apierrors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"restmold/internal/database"
)

// Translator is the single place where errors cross the HTTP boundary. Every
// handler returns errors to it and every response body it writes uses the
// same envelope. When debug is false, detail on unexpected errors is
// suppressed so internals never leak to clients.
type Translator struct {
	logger *slog.Logger
	debug  bool
}

// NewTranslator creates a new boundary translator
func NewTranslator(logger *slog.Logger, debug bool) *Translator {
	return &Translator{
		logger: logger.With(slog.String("component", "error_translator")),
		debug:  debug,
	}
}

// Respond translates any error into the uniform envelope and writes it.
func (t *Translator) Respond(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	apiErr := t.Translate(err)

	logFn := t.logger.WarnContext
	if apiErr.StatusCode >= 500 {
		logFn = t.logger.ErrorContext
	}
	logFn(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("error_code", apiErr.ErrorCode),
		slog.Int("status", apiErr.StatusCode),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	render.Status(r, apiErr.StatusCode)
	render.JSON(w, r, NewEnvelope(apiErr, r.URL.Path))
}

// Translate maps an arbitrary error to an APIError. Known categories get
// their dedicated status and code; anything else becomes a 500 whose detail
// is only populated in debug mode.
func (t *Translator) Translate(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		fields := make([]FieldError, 0, len(valErrs))
		for _, fe := range valErrs {
			fields = append(fields, FieldError{
				Field:   fe.Field(),
				Message: validationMessage(fe),
			})
		}
		return NewValidationError(fields)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && isIntegrityViolation(pgErr) {
		return NewIntegrityError(pgErr.Message)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	if errors.Is(err, database.ErrNotInitialized) {
		return ErrServiceUnavailable.WithMessage("Database is not available")
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrServiceUnavailable.WithMessage("Request cancelled or timed out")
	}

	if t.debug {
		return ErrInternalServer.WithDetail(err.Error())
	}
	return ErrInternalServer
}

// Postgres class 23 covers integrity constraint violations: not-null (23502),
// foreign key (23503), unique (23505), check (23514).
func isIntegrityViolation(pgErr *pgconn.PgError) bool {
	return len(pgErr.Code) == 5 && pgErr.Code[:2] == "23"
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or more", fe.Param())
	case "email":
		return "must be a valid email address"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// RespondPanic logs a recovered panic and writes the 500 envelope. Stack
// traces go to the log only, never to the client.
func (t *Translator) RespondPanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	t.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	apiErr := ErrInternalServer
	if t.debug {
		apiErr = apiErr.WithDetail(fmt.Sprintf("%v", recovered))
	}
	WriteError(w, r, apiErr)
}

// NotFound is the router fallback for unmatched paths.
func (t *Translator) NotFound(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, NewEnvelope(ErrNotFound, r.URL.Path))
}

// MethodNotAllowed is the router fallback for matched paths with a wrong verb.
func (t *Translator) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apiErr := New(http.StatusMethodNotAllowed, "MethodNotAllowedError",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method))
	render.Status(r, apiErr.StatusCode)
	render.JSON(w, r, NewEnvelope(apiErr, r.URL.Path))
}
