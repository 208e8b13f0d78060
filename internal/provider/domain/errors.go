package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_config")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrEventIgnored     = errors.New("event_ignored")
)

type ErrorCode string

const (
	CodeNoAPIKey           ErrorCode = "NO_API_KEY"
	CodeBadKey             ErrorCode = "BAD_KEY"
	CodeNotAuthorized      ErrorCode = "NOT_AUTHORIZED"
	CodeNoNumbers          ErrorCode = "NO_NUMBERS"
	CodeNoBalance          ErrorCode = "NO_BALANCE"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeAlreadyCancelled   ErrorCode = "ALREADY_CANCELLED"
	CodeAlreadyFinished    ErrorCode = "ALREADY_FINISHED"
	CodeRentInactive       ErrorCode = "RENT_INACTIVE"
	CodeBadService         ErrorCode = "BAD_SERVICE"
	CodeBadCountry         ErrorCode = "BAD_COUNTRY"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"
	CodeUnsupported        ErrorCode = "UNSUPPORTED"
	CodeUnexpectedResponse ErrorCode = "UNEXPECTED_RESPONSE"
	CodeNetwork            ErrorCode = "NETWORK"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeProviderError      ErrorCode = "PROVIDER_ERROR"
)

// Error is the typed failure every adapter returns.
type Error struct {
	Provider   string
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Err        error
}

func NewError(provider string, code ErrorCode, message string) *Error {
	return &Error{Provider: provider, Code: code, Message: message}
}

func WrapError(provider string, code ErrorCode, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Provider: provider, Code: code, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports transient failures: network, timeout and provider 5xx.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeNetwork, CodeTimeout:
		return true
	case CodeProviderError:
		return e.HTTPStatus >= http.StatusInternalServerError
	default:
		return false
	}
}

func CodeOf(err error) ErrorCode {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ""
}

func IsCode(err error, codes ...ErrorCode) bool {
	code := CodeOf(err)
	if code == "" {
		return false
	}
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func IsRetryable(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Retryable()
}

// StatusFromHTTP maps a provider HTTP status onto an error code for bodies
// that carry no recognizable error string.
func StatusFromHTTP(status int) ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return CodeBadKey
	case status == http.StatusForbidden:
		return CodeNotAuthorized
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	default:
		return CodeProviderError
	}
}
