package server

import (
	"errors"
	"net/http"
	"strings"

	billingdomain "github.com/flowin/pdam/internal/billing/domain"
	conndomain "github.com/flowin/pdam/internal/connection/domain"
	meterdomain "github.com/flowin/pdam/internal/meter/domain"
	tariffdomain "github.com/flowin/pdam/internal/tariff/domain"
	"github.com/gin-gonic/gin"
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
	Type           string            `json:"type"`
	Message        string            `json:"message"`
	Errors         []ValidationError `json:"errors,omitempty"`
	ExpectedStates []string          `json:"expected_states,omitempty"`
	ActualState    string            `json:"actual_state,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
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
		code := validationErrorCode(err)
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

	// Wrong-state transitions surface the expected and actual states so the
	// caller can tell a stale retry apart from a broken flow.
	var stateErr *conndomain.StateError
	if errors.As(err, &stateErr) {
		expected := make([]string, 0, len(stateErr.Expected))
		for _, state := range stateErr.Expected {
			expected = append(expected, string(state))
		}
		return http.StatusConflict, errorPayload{
			Type:           "precondition_failed",
			Message:        "operation not allowed in current state",
			ExpectedStates: expected,
			ActualState:    string(stateErr.Actual),
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, conndomain.ErrUnauthorized):
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
	case errors.Is(err, ErrInternal),
		errors.Is(err, conndomain.ErrCorruptState):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
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
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isApplicationValidationError(err),
		isTariffValidationError(err),
		isMeterValidationError(err),
		isBillingValidationError(err):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, conndomain.ErrPreconditionFailed),
		errors.Is(err, tariffdomain.ErrNameExists),
		errors.Is(err, tariffdomain.ErrInUse),
		errors.Is(err, meterdomain.ErrDuplicateMeter),
		errors.Is(err, meterdomain.ErrWorkflowNotReady),
		errors.Is(err, billingdomain.ErrBillingExists),
		errors.Is(err, billingdomain.ErrMeterInactive):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, tariffdomain.ErrNameExists):
		return "tariff group name already exists"
	case errors.Is(err, tariffdomain.ErrInUse):
		return "tariff group is referenced by meters"
	case errors.Is(err, meterdomain.ErrDuplicateMeter):
		return "meter or account number already in use"
	case errors.Is(err, meterdomain.ErrWorkflowNotReady):
		return "application is not ready for meter assignment"
	case errors.Is(err, billingdomain.ErrBillingExists):
		return "billing already issued for this period"
	case errors.Is(err, billingdomain.ErrMeterInactive):
		return "meter is inactive"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, conndomain.ErrNotFound),
		errors.Is(err, conndomain.ErrSurveyNotFound),
		errors.Is(err, conndomain.ErrEstimateNotFound),
		errors.Is(err, tariffdomain.ErrNotFound),
		errors.Is(err, meterdomain.ErrNotFound),
		errors.Is(err, billingdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if code == "invalid_request" {
		return "request"
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
