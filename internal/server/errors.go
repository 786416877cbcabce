package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	consumptiondomain "github.com/smallbiznis/entitlement/internal/consumption/domain"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	legacydomain "github.com/smallbiznis/entitlement/internal/legacy/domain"
	planconfigdomain "github.com/smallbiznis/entitlement/internal/planconfig/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal_error")
	ErrNotFound        = errors.New("not_found")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrTooManyRequests = errors.New("too_many_requests")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, planconfigdomain.ErrForeignFeature):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, featuredomain.ErrInvalidApplication),
		errors.Is(err, featuredomain.ErrInvalidName),
		errors.Is(err, featuredomain.ErrInvalidCategory),
		errors.Is(err, featuredomain.ErrInvalidFieldName),
		errors.Is(err, featuredomain.ErrInvalidFieldType),
		errors.Is(err, featuredomain.ErrInvalidUnit),
		errors.Is(err, featuredomain.ErrInvalidID),
		errors.Is(err, featuredomain.ErrInvalidScope),
		errors.Is(err, planconfigdomain.ErrInvalidPlan),
		errors.Is(err, planconfigdomain.ErrInvalidApplication),
		errors.Is(err, planconfigdomain.ErrInvalidFeatureID),
		errors.Is(err, planconfigdomain.ErrInvalidStatus),
		errors.Is(err, planconfigdomain.ErrInvalidFieldValue),
		errors.Is(err, planconfigdomain.ErrUnknownFeature),
		errors.Is(err, planconfigdomain.ErrUnknownField),
		errors.Is(err, consumptiondomain.ErrInvalidSubscription),
		errors.Is(err, consumptiondomain.ErrInvalidFeature),
		errors.Is(err, consumptiondomain.ErrInvalidField),
		errors.Is(err, consumptiondomain.ErrInvalidPlan),
		errors.Is(err, consumptiondomain.ErrInvalidDelta),
		errors.Is(err, consumptiondomain.ErrInvalidID),
		errors.Is(err, consumptiondomain.ErrInvalidPeriod),
		errors.Is(err, legacydomain.ErrInvalidApplication):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, featuredomain.ErrDuplicateName),
		errors.Is(err, featuredomain.ErrDuplicateFieldName),
		errors.Is(err, consumptiondomain.ErrNoConfiguredLimit),
		errors.Is(err, consumptiondomain.ErrNoCurrentRecord):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, consumptiondomain.ErrNoConfiguredLimit):
		return "no configured limit for this plan feature field"
	case errors.Is(err, consumptiondomain.ErrNoCurrentRecord):
		return "no current consumption record; initialize first"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, featuredomain.ErrNotFound),
		errors.Is(err, planconfigdomain.ErrNotFound),
		errors.Is(err, consumptiondomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
