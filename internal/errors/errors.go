package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
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

// ValidationError describes one rejected field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Error codes shared by the API and the problem mapper.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeNoUsableData     = "NO_USABLE_DATA"
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	CodeUpstream         = "UPSTREAM_UNAVAILABLE"
	CodeExportFailed     = "EXPORT_FAILED"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
)

// Predefined error types for common scenarios. Never mutate them; derive
// a copy with WithDetails.
var (
	// 400 Bad Request
	ErrInvalidRequest   = New(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, CodeValidationFailed, "Request validation failed")

	// 404 Not Found
	ErrNotFound         = New(http.StatusNotFound, CodeNotFound, "Resource not found")
	ErrSnapshotNotFound = New(http.StatusNotFound, CodeNotFound, "No snapshot stored for this offering")

	// 422 Unprocessable Entity
	ErrNoUsableData = New(http.StatusUnprocessableEntity, CodeNoUsableData, "No subscription data available for this offering")

	// 429 Too Many Requests
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded")

	// 500 Internal Server Error
	ErrInternalServer = New(http.StatusInternalServerError, CodeInternal, "Internal server error")
	ErrExportFailed   = New(http.StatusInternalServerError, CodeExportFailed, "Export failed")

	// 502 Bad Gateway
	ErrUpstream = New(http.StatusBadGateway, CodeUpstream, "Exchange source unavailable")
)

// WithDetails returns a copy of e carrying details.
func (e *APIError) WithDetails(details interface{}) *APIError {
	c := *e
	c.Details = details
	return &c
}

// InvalidRequestWithError creates an invalid request error carrying the cause text
func InvalidRequestWithError(err error) *APIError {
	return ErrInvalidRequest.WithDetails(err.Error())
}

// ErrValidation creates a validation error with field details
func ErrValidation(field, message string) *APIError {
	return ErrValidationFailed.WithDetails(ValidationError{
		Field:   field,
		Message: message,
	})
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error:   err,
	}
}

// Render implements the render.Renderer interface
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// NewValidationErrors creates validation errors from multiple fields
func NewValidationErrors(errs []ValidationError) *APIError {
	return ErrValidationFailed.WithDetails(ValidationErrors{Errors: errs})
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(err))
}
