package llmadapter

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// ErrorParser classifies raw provider errors. It never decides on retries;
// the classification only enriches logs and error details.
type ErrorParser struct {
	provider string
}

func NewErrorParser(provider string) *ErrorParser {
	return &ErrorParser{provider: provider}
}

var statusCodePattern = regexp.MustCompile(`(?i)(?:status(?: code)?[: ]+|http |error[: ]+)([1-5]\d\d)\b`)

type errorPattern struct {
	needles []string
	status  int
	code    string
}

var errorPatterns = []errorPattern{
	{needles: []string{"insufficient_quota", "quota exceeded"}, code: ErrCodeQuotaExceeded},
	{needles: []string{"rate limit", "rate_limit", "too many requests"}, status: http.StatusTooManyRequests},
	{needles: []string{"invalid api key", "invalid_api_key", "unauthorized"}, status: http.StatusUnauthorized},
	{needles: []string{"model not found", "invalid model", "model_not_found"}, code: ErrCodeInvalidModel},
	{needles: []string{"content policy", "content_filter"}, code: ErrCodeContentPolicy},
	{needles: []string{"service unavailable", "overloaded"}, status: http.StatusServiceUnavailable},
	{needles: []string{"timeout", "timed out", "deadline exceeded"}, code: ErrCodeTimeout},
	{needles: []string{"connection refused", "connection reset", "no such host"}, code: ErrCodeConnection},
}

// ParseError returns nil when err carries no recognizable signal.
func (p *ErrorParser) ParseError(err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCode(ErrCodeTimeout, err.Error(), p.provider, err)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if m := statusCodePattern.FindStringSubmatch(lower); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return NewError(code, msg, p.provider, err)
		}
	}
	for _, pattern := range errorPatterns {
		for _, needle := range pattern.needles {
			if !strings.Contains(lower, needle) {
				continue
			}
			if pattern.status > 0 {
				return NewError(pattern.status, msg, p.provider, err)
			}
			return NewErrorWithCode(pattern.code, msg, p.provider, err)
		}
	}
	return nil
}
