package classifier

import (
	"math"
	"math/rand"
	"strings"
	"time"
)

// ActionKind is the closed set of recovery actions.
type ActionKind string

const (
	ActionEscalate        ActionKind = "escalate"
	ActionRetry           ActionKind = "retry"
	ActionCompressContext ActionKind = "compress_context"
	ActionDecompose       ActionKind = "decompose"
	ActionReprompt        ActionKind = "reprompt"
)

// RecoveryRequest is the input to SelectAction.
type RecoveryRequest struct {
	Input      Input
	ErrorType  ErrorType
	Attempt    int
	MaxRetries int
}

// Constraints accompanies an ActionReprompt decision: format hints
// derived from the error text, plus a verbatim statement of the
// previous failure (spec.md §4.2).
type Constraints struct {
	RequireValidJSON     bool
	RequireAllFields     bool
	EnforceTypes         bool
	PreviousFailure      string
}

// RecoveryDecision is the output of SelectAction.
type RecoveryDecision struct {
	Action      ActionKind
	Reason      string
	DelayMs     int64
	Constraints *Constraints
}

// BackoffConfig parameterizes calculateBackoff (spec.md §4.2).
type BackoffConfig struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
	Jitter     float64
}

// DefaultBackoffConfig matches spec.md §4.2's defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{Base: time.Second, Multiplier: 2, Max: 30 * time.Second, Jitter: 0.2}
}

// Backoff computes the exponential-backoff-with-jitter delay for
// attempt, per spec.md §4.2: delay = min(base*mult^attempt, max) +
// jitter uniformly drawn from [-jitterFactor*delay, +jitterFactor*delay],
// clamped to >= 0.
func Backoff(cfg BackoffConfig, attempt int) time.Duration {
	raw := float64(cfg.Base) * math.Pow(cfg.Multiplier, float64(attempt))
	if raw > float64(cfg.Max) {
		raw = float64(cfg.Max)
	}
	jitterRange := cfg.Jitter * raw
	jitter := (rand.Float64()*2 - 1) * jitterRange
	delay := raw + jitter
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// SelectAction implements spec.md §4.2's recovery-action selection.
func SelectAction(req RecoveryRequest, backoffCfg BackoffConfig) RecoveryDecision {
	if req.Attempt >= req.MaxRetries {
		return RecoveryDecision{Action: ActionEscalate, Reason: "max_retries_exceeded"}
	}
	if req.ErrorType == Fatal {
		return RecoveryDecision{Action: ActionEscalate, Reason: "fatal_error"}
	}

	lower := strings.ToLower(req.Input.Message)

	if req.ErrorType == Recoverable {
		switch {
		case strings.Contains(lower, "context overflow"):
			return RecoveryDecision{Action: ActionCompressContext, Reason: "context_overflow"}
		case strings.Contains(lower, "token limit"):
			return RecoveryDecision{Action: ActionDecompose, Reason: "token_limit"}
		case strings.Contains(lower, "validation"):
			return RecoveryDecision{
				Action: ActionReprompt,
				Reason: "validation_failed",
				Constraints: buildConstraints(req.Input.Message),
			}
		case strings.Contains(lower, "tool error"):
			return withDelay(RecoveryDecision{Action: ActionRetry, Reason: "tool_error"}, backoffCfg, req.Attempt)
		}
		return withDelay(RecoveryDecision{Action: ActionRetry, Reason: "recoverable_other"}, backoffCfg, req.Attempt)
	}

	// Transient and Unknown both retry.
	reason := "transient"
	if req.ErrorType == Unknown {
		reason = "unknown"
	}
	return withDelay(RecoveryDecision{Action: ActionRetry, Reason: reason}, backoffCfg, req.Attempt)
}

func withDelay(d RecoveryDecision, cfg BackoffConfig, attempt int) RecoveryDecision {
	d.DelayMs = Backoff(cfg, attempt).Milliseconds()
	return d
}

// buildConstraints derives reprompt format hints from the error text
// (spec.md §4.2).
func buildConstraints(message string) *Constraints {
	lower := strings.ToLower(message)
	c := &Constraints{PreviousFailure: message}
	if strings.Contains(lower, "invalid json") {
		c.RequireValidJSON = true
	}
	if strings.Contains(lower, "missing field") {
		c.RequireAllFields = true
	}
	if strings.Contains(lower, "type error") {
		c.EnforceTypes = true
	}
	return c
}
