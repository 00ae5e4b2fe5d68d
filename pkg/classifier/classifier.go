// Package classifier implements the tiered error-recovery classifier
// from spec.md §4.2: pattern-based tiering into {transient, recoverable,
// fatal, unknown}, a recovery-action selector, and exponential
// backoff-with-jitter scheduling.
package classifier

import "strings"

// ErrorType is the closed classification taxonomy.
type ErrorType string

const (
	Transient   ErrorType = "transient"
	Recoverable ErrorType = "recoverable"
	Fatal       ErrorType = "fatal"
	Unknown     ErrorType = "unknown"
)

// Input is the shape extracted from an arbitrary failure before
// classification.
type Input struct {
	Code       string
	HTTPStatus int
	Message    string
}

var transientCodes = set("ECONNRESET", "ETIMEDOUT", "ECONNREFUSED", "ENOTFOUND", "EAI_AGAIN")
var transientStatuses = intSet(429, 500, 502, 503, 504)
var transientPatterns = []string{
	"rate limit", "too many requests", "temporarily unavailable",
	"service unavailable", "timeout", "connection reset",
	"network error", "overloaded",
}

var recoverableCodes = set("CONTEXT_OVERFLOW", "VALIDATION_FAILED", "TOKEN_LIMIT", "TOOL_ERROR")
var recoverableStatuses = intSet(400, 413, 422)
var recoverablePatterns = []string{
	"context overflow", "token limit", "validation failed",
	"invalid format", "tool error", "content too large",
}

var fatalCodes = set("EAUTH", "QUOTA_EXCEEDED", "INVALID_API_KEY", "PERMISSION_DENIED")
var fatalStatuses = intSet(401, 403)
var fatalPatterns = []string{
	"authentication failed", "unauthorized", "forbidden",
	"quota exceeded", "billing", "invalid api key",
	"access denied", "account suspended",
}

func set(vals ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

func intSet(vals ...int) map[int]struct{} {
	m := make(map[int]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

func matches(in Input, codes map[string]struct{}, statuses map[int]struct{}, patterns []string) bool {
	if _, ok := codes[in.Code]; ok {
		return true
	}
	if _, ok := statuses[in.HTTPStatus]; ok {
		return true
	}
	lower := strings.ToLower(in.Message)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Classify tiers in into one of the four ErrorTypes. Matching order is
// transient, then fatal, then recoverable — first match wins (spec.md
// §4.2). Anything unmatched is Unknown.
func Classify(in Input) ErrorType {
	if matches(in, transientCodes, transientStatuses, transientPatterns) {
		return Transient
	}
	if matches(in, fatalCodes, fatalStatuses, fatalPatterns) {
		return Fatal
	}
	if matches(in, recoverableCodes, recoverableStatuses, recoverablePatterns) {
		return Recoverable
	}
	return Unknown
}
