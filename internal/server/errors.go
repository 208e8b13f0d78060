package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	phonedomain "github.com/smallbiznis/smsrent/internal/phonenumber/domain"
	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/ratelimit"
	reconciledomain "github.com/smallbiznis/smsrent/internal/reconcile/domain"
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
	Type     string            `json:"type"`
	Message  string            `json:"message"`
	Code     string            `json:"code,omitempty"`
	Provider string            `json:"provider,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
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

	var perr *providerdomain.Error
	if errors.As(err, &perr) {
		return providerErrorStatus(perr.Code), errorPayload{
			Type:     "provider_error",
			Message:  providerErrorMessage(perr),
			Code:     string(perr.Code),
			Provider: perr.Provider,
		}
	}

	switch {
	case errors.Is(err, ratelimit.ErrLockHeld):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "sync already running",
			Code:    "sync_in_progress",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, phonedomain.ErrNotActive):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, phonedomain.ErrPhoneExtraction):
		return http.StatusBadGateway, errorPayload{
			Type:    "provider_error",
			Message: "provider returned no phone number",
			Code:    string(providerdomain.CodeUnexpectedResponse),
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// providerErrorStatus maps a provider code onto the status returned to our
// own callers, not the status the provider answered with.
func providerErrorStatus(code providerdomain.ErrorCode) int {
	switch code {
	case providerdomain.CodeNoAPIKey, providerdomain.CodeBadService, providerdomain.CodeBadCountry:
		return http.StatusBadRequest
	case providerdomain.CodeBadKey:
		return http.StatusUnauthorized
	case providerdomain.CodeNotAuthorized:
		return http.StatusForbidden
	case providerdomain.CodeNotFound:
		return http.StatusNotFound
	case providerdomain.CodeNoNumbers,
		providerdomain.CodeNoBalance,
		providerdomain.CodeRentInactive,
		providerdomain.CodeAlreadyCancelled,
		providerdomain.CodeAlreadyFinished:
		return http.StatusConflict
	case providerdomain.CodeRateLimited:
		return http.StatusTooManyRequests
	case providerdomain.CodeUnsupported:
		return http.StatusNotImplemented
	case providerdomain.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func providerErrorMessage(perr *providerdomain.Error) string {
	switch perr.Code {
	case providerdomain.CodeNetwork, providerdomain.CodeTimeout, providerdomain.CodeProviderError, providerdomain.CodeUnexpectedResponse:
		return "provider request failed"
	}
	if msg := strings.TrimSpace(perr.Message); msg != "" {
		return msg
	}
	return strings.ToLower(string(perr.Code))
}

// classifyErrorForLog returns the error type and code attached to request logs.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	var perr *providerdomain.Error
	if errors.As(err, &perr) {
		return "provider_error", string(perr.Code)
	}
	_, payload := mapError(err)
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
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
		errors.Is(err, providerdomain.ErrInvalidPayload):
		return true
	case isPhoneNumberValidationError(err):
		return true
	default:
		return false
	}
}

func isPhoneNumberValidationError(err error) bool {
	switch {
	case errors.Is(err, phonedomain.ErrInvalidID),
		errors.Is(err, phonedomain.ErrInvalidProvider),
		errors.Is(err, phonedomain.ErrInvalidHours),
		errors.Is(err, phonedomain.ErrInvalidStatus),
		errors.Is(err, phonedomain.ErrInvalidCursor):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, phonedomain.ErrNotFound),
		errors.Is(err, providerdomain.ErrProviderNotFound),
		errors.Is(err, reconciledomain.ErrBookingNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, providerdomain.ErrInvalidPayload):
		return "invalid_payload"
	default:
		return err.Error()
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
