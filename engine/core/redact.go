package core

import (
	"regexp"
	"strings"
)

// Precompiled patterns for secret shapes that show up in provider and database errors.
var (
	bearerTokenRe = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-\._~\+\/]+=*`)
	kvSecretRe    = regexp.MustCompile(
		`(?i)(api[_-]?key|token|secret|password|authorization)\s*[:=]\s*["']?[^"'\s]+["']?`,
	)
	openAIKeyRe  = regexp.MustCompile(`\b(sk-[A-Za-z0-9_\-]{16,})\b`)
	connectionRe = regexp.MustCompile(`(?i)((postgres|postgresql|redis|rediss|https?)://)[^@\s/]+@`)
)

const maxRedactedLen = 512

// RedactString trims, truncates and scrubs API keys and DSN credentials.
func RedactString(s string) string {
	s = strings.TrimSpace(s)
	s = connectionRe.ReplaceAllString(s, "$1[REDACTED]@")
	s = bearerTokenRe.ReplaceAllString(s, "$1[REDACTED]")
	s = kvSecretRe.ReplaceAllString(s, "$1=[REDACTED]")
	s = openAIKeyRe.ReplaceAllString(s, "[REDACTED]")
	if len(s) > maxRedactedLen {
		s = s[:maxRedactedLen] + "…"
	}
	return s
}

// RedactError applies RedactString to an error, returning an empty string when nil.
func RedactError(err error) string {
	if err == nil {
		return ""
	}
	return RedactString(err.Error())
}
