package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "github.com/Roshiii-8511/gainipo-subscription-scraper/internal/errors"
)

// DefaultMaxBodySize caps request bodies accepted by DecodeAndValidate.
const DefaultMaxBodySize = 2 << 20

var offeringIDRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)

// ValidationMiddleware decodes JSON bodies and validates them with struct tags.
type ValidationMiddleware struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	maxBodySize  int64
}

// NewValidationMiddleware creates a new validation middleware
func NewValidationMiddleware(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ValidationMiddleware {
	v := validator.New()
	_ = v.RegisterValidation("offeringid", isOfferingID)

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ValidationMiddleware{
		validator:    v,
		logger:       logger.With(slog.String("component", "validation_middleware")),
		errorHandler: errorHandler,
		maxBodySize:  DefaultMaxBodySize,
	}
}

// DecodeAndValidate decodes the JSON body of r into dst and validates it.
// On failure it writes the problem response and returns false.
func (m *ValidationMiddleware) DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.ContentLength > m.maxBodySize {
		m.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusRequestEntityTooLarge,
			"PAYLOAD_TOO_LARGE",
			"Request body exceeds maximum allowed size",
			map[string]interface{}{"max_size": m.maxBodySize},
		))
		return false
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, m.maxBodySize))
	if err := dec.Decode(dst); err != nil {
		m.logger.DebugContext(r.Context(), "request body rejected",
			slog.String("error", err.Error()),
			slog.String("request_id", GetReqID(r.Context())))
		m.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return false
	}

	if err := m.ValidateStruct(dst); err != nil {
		m.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}

// ValidateStruct validates a struct and returns an APIError listing every
// failed field.
func (m *ValidationMiddleware) ValidateStruct(v interface{}) error {
	err := m.validator.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}
	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Namespace(),
			Message: formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

// ContentTypeValidator rejects bodies whose Content-Type is not allowed.
func ContentTypeValidator(contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			for _, allowed := range contentTypes {
				if strings.HasPrefix(contentType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			apierrors.WriteError(w, apierrors.NewWithDetails(
				http.StatusUnsupportedMediaType,
				"UNSUPPORTED_MEDIA_TYPE",
				"Unsupported content type",
				map[string]interface{}{
					"content_type": contentType,
					"allowed":      contentTypes,
				},
			))
		})
	}
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_without":
		return fmt.Sprintf("%s is required when %s is absent", field, param)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "offeringid":
		return fmt.Sprintf("%s must be lower-case letters, digits and underscores", field)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

func isOfferingID(fl validator.FieldLevel) bool {
	return ValidOfferingID(fl.Field().String())
}

// ValidOfferingID reports whether id has the shape of an offering slug.
func ValidOfferingID(id string) bool {
	return offeringIDRe.MatchString(id)
}

// QueryParamValidator validates query parameters
type QueryParamValidator struct {
	errorHandler *apierrors.ErrorHandler
}

// NewQueryParamValidator creates a new query parameter validator
func NewQueryParamValidator(errorHandler *apierrors.ErrorHandler) *QueryParamValidator {
	return &QueryParamValidator{errorHandler: errorHandler}
}

// ValidateInt reads an integer query parameter within [min, max]. A
// missing parameter yields defaultValue.
func (v *QueryParamValidator) ValidateInt(w http.ResponseWriter, r *http.Request, param string, min, max, defaultValue int) (int, bool) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue, true
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, fmt.Sprintf("%s must be a valid integer", param)))
		return 0, false
	}
	if n < min || n > max {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, fmt.Sprintf("%s must be between %d and %d", param, min, max)))
		return 0, false
	}
	return n, true
}

// ValidateEnum reads a query parameter restricted to allowed values.
func (v *QueryParamValidator) ValidateEnum(w http.ResponseWriter, r *http.Request, param string, allowed []string, defaultValue string) (string, bool) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue, true
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return a, true
		}
	}
	v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, fmt.Sprintf("%s must be one of: %s", param, strings.Join(allowed, ", "))))
	return "", false
}
