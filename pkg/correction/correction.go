// Package correction implements the correction loop engine from
// spec.md §4.6: iterative verify -> critique -> revise orchestration
// with stagnation detection and an optional memory-backed reflection
// store. Iteration/backoff texture is grounded on the agentops
// rpi_loop.go reference (cycle counting, retry policy, stop-reason
// style return value); producer calls are wrapped through pkg/breaker
// so a failing external agent trips its own circuit rather than
// stalling every correction session that shares it.
package correction

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/drewrad8/strategos/pkg/breaker"
	"github.com/drewrad8/strategos/pkg/storage"
	"github.com/drewrad8/strategos/pkg/types"
)

// StopReason is the closed set of reasons a correction session ends
// (spec.md §4.6).
type StopReason string

const (
	StopValidOutput         StopReason = "valid_output"
	StopMaxIterations       StopReason = "max_iterations"
	StopNoNewCritiques      StopReason = "no_new_critiques"
	StopConfidenceThreshold StopReason = "confidence_threshold"
	StopProducerUnavailable StopReason = "producer_unavailable"
	StopVerificationError   StopReason = "verification_error"
)

// confidenceThreshold is the confidence level at which a session
// accepts the current output early (spec.md §4.6).
const confidenceThreshold = 0.95

// reflectionMinImportance and reflectionBoost are the fixed constants
// named in spec.md §4.6's reflection extension.
const (
	reflectionMinImportance = 0.3
	reflectionK             = 3
	reflectionBoost         = 0.05
)

// defaultMaxIterations are the per-task-type iteration caps named in
// spec.md §4.6.
func defaultMaxIterations() map[types.TaskType]int {
	return map[types.TaskType]int{
		types.TaskTypeCode:      5,
		types.TaskTypeReasoning: 3,
		types.TaskTypeFactual:   3,
		types.TaskTypeFormat:    2,
	}
}

// VerificationResult is one verification tool pass's outcome (spec.md
// §4.6). Valid is true iff no error-severity critique is present.
type VerificationResult struct {
	Valid      bool
	Critiques  []Critique
	Confidence float64
	Evidence   string
}

// Verifier dispatches verification on taskType to one or more external
// tools, aggregating their results. Implementations must be
// side-effect-free relative to core state (spec.md §4.6).
type Verifier interface {
	Verify(ctx context.Context, output string, taskType types.TaskType, taskCtx types.Context) (VerificationResult, error)
}

// Producer is the thing being corrected. It exposes exactly the one
// operation the loop needs (spec.md §4.6).
type Producer interface {
	SendCritique(ctx context.Context, formattedCritique string, taskCtx types.Context) (string, error)
}

// HistoryEntry records one loop iteration (spec.md §3 Correction
// Session: "history entries record {iteration, output, verification,
// criticsFired}").
type HistoryEntry struct {
	Iteration    int
	Output       string
	Verification VerificationResult
	CriticsFired []string
}

// Result is the correction session's return value (spec.md §4.6).
type Result struct {
	Success         bool
	FinalOutput     string
	Iterations      int
	RemainingIssues []Critique
	StopReason      StopReason
	History         []HistoryEntry
	Confidence      float64
}

// Engine runs correction sessions against a Verifier, optionally
// consulting a ReflectionStore for past lessons.
type Engine struct {
	verifier     Verifier
	breakers     *breaker.Registry
	memory       storage.ReflectionStore
	logger       zerolog.Logger
	maxIterations map[types.TaskType]int
}

// New constructs an Engine. memory may be nil to disable the
// reflection extension entirely.
func New(verifier Verifier, breakers *breaker.Registry, memory storage.ReflectionStore, logger zerolog.Logger) *Engine {
	return &Engine{
		verifier:      verifier,
		breakers:      breakers,
		memory:        memory,
		logger:        logger,
		maxIterations: defaultMaxIterations(),
	}
}

// Run drives one correction session to completion (spec.md §4.6's loop
// body, verbatim in control flow).
func (e *Engine) Run(ctx context.Context, producer Producer, initialOutput string, taskType types.TaskType, taskCtx types.Context, projectID string) *Result {
	if taskCtx == nil {
		taskCtx = types.Context{}
	}

	usedReflections := e.injectReflections(taskType, projectID, taskCtx)

	max, ok := e.maxIterations[taskType]
	if !ok {
		max = e.maxIterations[types.TaskTypeCode]
	}

	output := initialOutput
	var lastCritiques map[string]struct{}
	var history []HistoryEntry

	iteration := 0
	for {
		iteration++

		verification, err := e.verifier.Verify(ctx, output, taskType, taskCtx)
		if err != nil {
			history = append(history, HistoryEntry{Iteration: iteration, Output: output})
			return e.finalize(ctx, history, output, iteration, StopVerificationError, 0, usedReflections, taskType, projectID)
		}

		entry := HistoryEntry{Iteration: iteration, Output: output, Verification: verification}
		for _, c := range verification.Critiques {
			entry.CriticsFired = append(entry.CriticsFired, critiqueKey(c))
		}
		history = append(history, entry)

		if verification.Valid {
			return e.finalize(ctx, history, output, iteration, StopValidOutput, verification.Confidence, usedReflections, taskType, projectID)
		}
		if verification.Confidence >= confidenceThreshold {
			return e.finalize(ctx, history, output, iteration, StopConfidenceThreshold, verification.Confidence, usedReflections, taskType, projectID)
		}
		if iteration >= max {
			return e.finalize(ctx, history, output, iteration, StopMaxIterations, verification.Confidence, usedReflections, taskType, projectID)
		}

		current := critiqueSet(verification.Critiques)
		if lastCritiques != nil && isSubset(current, lastCritiques) {
			return e.finalize(ctx, history, output, iteration, StopNoNewCritiques, verification.Confidence, usedReflections, taskType, projectID)
		}

		formatted := formatCritiques(verification.Critiques)
		revised, err := e.sendCritique(ctx, taskType, producer, formatted, taskCtx)
		if err != nil {
			return e.finalize(ctx, history, output, iteration, StopProducerUnavailable, verification.Confidence, usedReflections, taskType, projectID)
		}
		output = revised
		lastCritiques = current
	}
}

// sendCritique wraps the producer call in a per-task-type circuit
// breaker (DESIGN.md: an unresponsive agent should trip its own
// breaker rather than stall every session sharing it).
func (e *Engine) sendCritique(ctx context.Context, taskType types.TaskType, producer Producer, formatted string, taskCtx types.Context) (string, error) {
	if e.breakers == nil {
		return producer.SendCritique(ctx, formatted, taskCtx)
	}
	b := e.breakers.Get("correction:"+string(taskType), breaker.DefaultConfig())
	return breaker.Execute(b, func() (string, error) {
		return producer.SendCritique(ctx, formatted, taskCtx)
	})
}

// formatCritique formats a single critique for a producer (spec.md
// §4.6's formatCritique).
func formatCritique(c Critique) string {
	loc := ""
	if c.Location != "" {
		loc = fmt.Sprintf(" (%s)", c.Location)
	}
	s := fmt.Sprintf("[%s/%s]%s %s", c.Severity, c.Type, loc, c.Message)
	if c.Suggestion != "" {
		s += fmt.Sprintf(" — suggestion: %s", c.Suggestion)
	}
	return s
}

// formatCritiques joins every critique into one producer-facing
// revision prompt.
func formatCritiques(critiques []Critique) string {
	s := ""
	for i, c := range critiques {
		if i > 0 {
			s += "\n"
		}
		s += formatCritique(c)
	}
	return s
}

// finalize builds the Result, stores a reflection on failure, and
// reinforces used reflections on success (spec.md §4.6). When ctx was
// cancelled, no new reflection is stored — a cancelled session carries
// no lesson worth remembering (spec.md §5).
func (e *Engine) finalize(ctx context.Context, history []HistoryEntry, output string, iterations int, reason StopReason, confidence float64, usedReflections []*storage.Reflection, taskType types.TaskType, projectID string) *Result {
	success := reason == StopValidOutput || reason == StopConfidenceThreshold
	var remaining []Critique
	if len(history) > 0 {
		remaining = history[len(history)-1].Verification.Critiques
	}

	result := &Result{
		Success:         success,
		FinalOutput:     output,
		Iterations:      iterations,
		RemainingIssues: remaining,
		StopReason:      reason,
		History:         history,
		Confidence:      confidence,
	}

	if e.memory == nil {
		return result
	}
	if success {
		for _, r := range usedReflections {
			if err := e.memory.ReinforceReflection(r.ID, reflectionBoost); err != nil {
				e.logger.Warn().Err(err).Str("reflectionId", r.ID).Msg("reinforce reflection")
			}
		}
		return result
	}
	if ctx.Err() != nil {
		return result
	}

	reflection := buildReflection(history, string(taskType), projectID, time.Now())
	if err := e.memory.SaveReflection(reflection); err != nil {
		e.logger.Warn().Err(err).Msg("save reflection")
	}
	return result
}

// injectReflections queries up to reflectionK past reflections and
// injects them into taskCtx.preamble (spec.md §4.6).
func (e *Engine) injectReflections(taskType types.TaskType, projectID string, taskCtx types.Context) []*storage.Reflection {
	if e.memory == nil {
		return nil
	}
	reflections, err := e.memory.QueryReflections(string(taskType), projectID, reflectionMinImportance, reflectionK)
	if err != nil {
		e.logger.Warn().Err(err).Msg("query reflections")
		return nil
	}
	if len(reflections) == 0 {
		return nil
	}

	preamble := ""
	for i, r := range reflections {
		if i > 0 {
			preamble += "\n"
		}
		preamble += r.Lessons
	}
	taskCtx.WithString("preamble", preamble)
	return reflections
}
