package apierrors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
)

// APIError is the single error type handlers and services return across the
// HTTP boundary. StatusCode selects the response status, ErrorCode is a stable
// machine-readable identifier, and Detail carries optional structured context.
type APIError struct {
	StatusCode int         `json:"-"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Detail     interface{} `json:"detail,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetail creates a new APIError with additional detail
func NewWithDetail(statusCode int, errorCode, message string, detail interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Detail:     detail,
	}
}

// WithDetail returns a copy of the error carrying the given detail payload.
// The receiver is not mutated so the predefined errors stay shareable.
func (e *APIError) WithDetail(detail interface{}) *APIError {
	return &APIError{
		StatusCode: e.StatusCode,
		ErrorCode:  e.ErrorCode,
		Message:    e.Message,
		Detail:     detail,
	}
}

// WithMessage returns a copy of the error with the message replaced.
func (e *APIError) WithMessage(message string) *APIError {
	return &APIError{
		StatusCode: e.StatusCode,
		ErrorCode:  e.ErrorCode,
		Message:    message,
		Detail:     e.Detail,
	}
}

// Predefined errors. Error codes default to the error's type name so clients
// can branch on them without parsing messages.
var (
	// 4xx client errors
	ErrBadRequest          = New(http.StatusBadRequest, "BadRequestError", "Bad request")
	ErrUnauthorized        = New(http.StatusUnauthorized, "UnauthorizedError", "Unauthorized")
	ErrForbidden           = New(http.StatusForbidden, "ForbiddenError", "Forbidden")
	ErrNotFound            = New(http.StatusNotFound, "NotFoundError", "Not found")
	ErrConflict            = New(http.StatusConflict, "ConflictError", "Conflict")
	ErrUnprocessableEntity = New(http.StatusUnprocessableEntity, "UnprocessableEntityError", "Unprocessable entity")
	ErrRateLimitExceeded   = New(http.StatusTooManyRequests, "RateLimitError", "Rate limit exceeded")

	// 5xx server errors
	ErrInternalServer     = New(http.StatusInternalServerError, "InternalServerError", "Internal server error")
	ErrNotImplemented     = New(http.StatusNotImplemented, "NotImplementedError", "Not implemented")
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "ServiceUnavailableError", "Service unavailable")
)

// FieldError describes a single request field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewValidationError builds the 422 response for a failed request validation.
func NewValidationError(fields []FieldError) *APIError {
	return NewWithDetail(
		http.StatusUnprocessableEntity,
		"ValidationError",
		"Request validation failed",
		map[string]interface{}{"errors": fields},
	)
}

// NewIntegrityError builds the 409 response for a database constraint
// violation. The driver message goes into detail so clients can see which
// constraint fired.
func NewIntegrityError(driverMessage string) *APIError {
	return NewWithDetail(
		http.StatusConflict,
		"IntegrityError",
		"Database integrity violation",
		map[string]interface{}{"database_error": driverMessage},
	)
}

// NotFoundf creates a not found error for a named resource.
func NotFoundf(resource string) *APIError {
	return ErrNotFound.WithMessage(resource + " not found")
}

// Envelope is the uniform error body: success is always false, error_code and
// message are always present, detail and path are omitted when empty.
type Envelope struct {
	Success   bool        `json:"success"`
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Detail    interface{} `json:"detail,omitempty"`
	Path      string      `json:"path,omitempty"`
}

// NewEnvelope wraps an APIError into the response body for the given request
// path.
func NewEnvelope(err *APIError, path string) *Envelope {
	return &Envelope{
		Success:   false,
		ErrorCode: err.ErrorCode,
		Message:   err.Message,
		Detail:    err.Detail,
		Path:      path,
	}
}

// Render implements the render.Renderer interface
func (e *Envelope) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// WriteError writes the error envelope directly, bypassing chi/render. Used
// by middleware that runs before the render context exists.
func WriteError(w http.ResponseWriter, r *http.Request, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	json.NewEncoder(w).Encode(NewEnvelope(err, r.URL.Path))
}
