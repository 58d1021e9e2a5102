package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/dataprocessing"
)

// Common error types following RFC 7807
const (
	TypeValidation  = "/errors/validation"
	TypeNotFound    = "/errors/not-found"
	TypeRateLimit   = "/errors/rate-limit"
	TypeInternal    = "/errors/internal"
	TypeServiceDown = "/errors/service-unavailable"
	TypeTimeout     = "/errors/timeout"
	TypeMethod      = "/errors/method-not-allowed"
)

// Domain-specific error types
const (
	TypeNoUsableData     = "/errors/subscription/no-usable-data"
	TypeSnapshotNotFound = "/errors/subscription/snapshot-not-found"
	TypeUpstream         = "/errors/source/unavailable"
	TypeSourceFormat     = "/errors/source/unparseable"
	TypeStorage          = "/errors/storage"
	TypeExport           = "/errors/export"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.LogAttrs(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	WriteProblem(w, problem)
}

// WriteProblem writes problem as application/problem+json.
func WriteProblem(w http.ResponseWriter, problem *ProblemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErrorToProblem(apiErr, r)
	}

	if errors.Is(err, dataprocessing.ErrNoUsableData) {
		problem := apiErrorToProblem(ErrNoUsableData, r)
		problem.Detail = err.Error()
		return problem
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErrorToProblem(appErr, r)
	}

	return apiErrorToProblem(ErrInternalServer, r)
}

func appErrorToProblem(appErr *AppError, r *http.Request) *ProblemDetails {
	var (
		status = http.StatusInternalServerError
		typ    = TypeInternal
		title  = "Internal Server Error"
		detail = appErr.Message
		code   = string(appErr.Type)
	)
	switch appErr.Type {
	case ErrTypeNotFound:
		status, typ, title = http.StatusNotFound, TypeSnapshotNotFound, "Resource Not Found"
	case ErrTypeValidation:
		status, typ, title = http.StatusBadRequest, TypeValidation, "Validation Failed"
		if appErr.Cause != nil {
			detail = appErr.Error()
		}
	case ErrTypeNetwork:
		status, typ, title = ErrUpstream.StatusCode, TypeUpstream, "Exchange Source Unavailable"
		code = ErrUpstream.ErrorCode
		detail = ErrUpstream.Message + ": " + appErr.Message
	case ErrTypeParsing:
		status, typ, title = http.StatusBadGateway, TypeSourceFormat, "Exchange Source Unparseable"
	case ErrTypeStorage:
		typ, title = TypeStorage, "Storage Failure"
		detail = "The snapshot store could not complete the request"
	case ErrTypeConfig:
		status, typ, title = http.StatusServiceUnavailable, TypeServiceDown, "Service Misconfigured"
	}

	problem := NewProblemDetails(status, typ, title, detail, r.URL.Path).
		WithExtension("error_code", code)
	for k, v := range appErr.Context {
		problem.WithExtension(k, v)
	}
	return problem
}

// apiErrorToProblem converts APIError to ProblemDetails
func apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case CodeValidationFailed, CodeInvalidRequest:
		problemType = TypeValidation
	case CodeNotFound:
		problemType = TypeNotFound
	case CodeNoUsableData:
		problemType = TypeNoUsableData
	case CodeRateLimited:
		problemType = TypeRateLimit
	case CodeUpstream:
		problemType = TypeUpstream
	case CodeExportFailed:
		problemType = TypeExport
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	WriteProblem(w, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := apiErrorToProblem(ErrNotFound, r).
		WithExtension("trace_id", middleware.GetReqID(r.Context()))

	WriteProblem(w, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethod,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	WriteProblem(w, problem)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// JSON writes v with the given status through chi/render.
func (h *ErrorHandler) JSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	render.Status(r, status)
	render.JSON(w, r, v)
}
