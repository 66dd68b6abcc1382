package llmadapter

import (
	"fmt"
	"net/http"
)

// Error codes for provider failures that carry no HTTP status.
const (
	ErrCodeTimeout         = "TIMEOUT"
	ErrCodeConnection      = "CONNECTION"
	ErrCodeQuotaExceeded   = "QUOTA_EXCEEDED"
	ErrCodeInvalidModel    = "INVALID_MODEL"
	ErrCodeContentPolicy   = "CONTENT_POLICY"
	ErrCodeRateLimit       = "RATE_LIMIT"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeUnavailable     = "UNAVAILABLE"
	ErrCodeProviderFailure = "PROVIDER_ERROR"
)

// Error is a classified provider failure.
type Error struct {
	Code       string
	StatusCode int
	Provider   string
	Message    string
	Err        error
}

func NewError(statusCode int, message, provider string, err error) *Error {
	return &Error{
		Code:       codeForStatus(statusCode),
		StatusCode: statusCode,
		Provider:   provider,
		Message:    message,
		Err:        err,
	}
}

func NewErrorWithCode(code, message, provider string, err error) *Error {
	return &Error{Code: code, Provider: provider, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider error (%s, status %d): %s", e.Provider, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s provider error (%s): %s", e.Provider, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return ErrCodeRateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrCodeUnauthorized
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ErrCodeUnavailable
	default:
		return ErrCodeProviderFailure
	}
}
