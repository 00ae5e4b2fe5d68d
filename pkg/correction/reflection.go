package correction

import (
	"fmt"
	"time"

	"github.com/drewrad8/strategos/pkg/storage"
)

// buildReflection distills a failed correction session's history into
// a durable Reflection (spec.md §4.6: "generate a reflection from the
// session history (categorised issues, detected patterns ..., lessons),
// score its importance by iteration count, remaining issues, detected
// patterns and categories, and store it").
func buildReflection(history []HistoryEntry, taskType, projectID string, now time.Time) *storage.Reflection {
	categories := categorize(history)
	patterns := detectPatterns(history)
	lessons := summarizeLessons(history, patterns)
	remaining := 0
	if len(history) > 0 {
		remaining = len(history[len(history)-1].Verification.Critiques)
	}

	return &storage.Reflection{
		ID:         fmt.Sprintf("%s-%s-%d", taskType, projectID, now.UnixNano()),
		TaskType:   taskType,
		ProjectID:  projectID,
		Importance: scoreImportance(len(history), remaining, patterns, categories),
		Categories: categories,
		Patterns:   patterns,
		Lessons:    lessons,
		CreatedAt:  now,
	}
}

// categorize collects the distinct critique types seen across the
// session, in first-seen order.
func categorize(history []HistoryEntry) []string {
	seen := map[string]bool{}
	var out []string
	for _, h := range history {
		for _, c := range h.Verification.Critiques {
			if !seen[c.Type] {
				seen[c.Type] = true
				out = append(out, c.Type)
			}
		}
	}
	return out
}

// detectPatterns names the qualitative shape of the session's
// iterations (spec.md §4.6: "recurring issue / degradation /
// oscillation / stagnation").
func detectPatterns(history []HistoryEntry) []string {
	if len(history) < 2 {
		return nil
	}

	var patterns []string
	counts := map[string]int{}
	confidences := make([]float64, 0, len(history))
	for _, h := range history {
		confidences = append(confidences, h.Verification.Confidence)
		for key := range critiqueSet(h.Verification.Critiques) {
			counts[key]++
		}
	}

	for _, n := range counts {
		if n >= len(history) {
			patterns = append(patterns, "recurring issue")
			break
		}
	}

	degrading := true
	for i := 1; i < len(confidences); i++ {
		if confidences[i] >= confidences[i-1] {
			degrading = false
			break
		}
	}
	if degrading {
		patterns = append(patterns, "degradation")
	}

	oscillating := false
	for i := 2; i < len(history); i++ {
		a := critiqueSet(history[i].Verification.Critiques)
		b := critiqueSet(history[i-2].Verification.Critiques)
		if len(a) > 0 && sameSet(a, b) {
			oscillating = true
			break
		}
	}
	if oscillating {
		patterns = append(patterns, "oscillation")
	}

	last := history[len(history)-1].Verification.Critiques
	secondLast := history[len(history)-2].Verification.Critiques
	if len(last) > 0 && isSubset(critiqueSet(last), critiqueSet(secondLast)) {
		patterns = append(patterns, "stagnation")
	}

	return patterns
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	return isSubset(a, b) && isSubset(b, a)
}

// summarizeLessons produces the free-text preamble injected into a
// future session's context.
func summarizeLessons(history []HistoryEntry, patterns []string) string {
	if len(history) == 0 {
		return ""
	}
	last := history[len(history)-1]
	s := fmt.Sprintf("Prior attempt stopped after %d iteration(s) with %d unresolved issue(s).", len(history), len(last.Verification.Critiques))
	if len(patterns) > 0 {
		s += " Observed pattern: " + patterns[0] + "."
	}
	for _, c := range last.Verification.Critiques {
		s += " " + formatCritique(c)
	}
	return s
}

// scoreImportance weighs iteration count, remaining issues, detected
// patterns, and category breadth into a single [0,1]-ish score (spec.md
// §4.6). Heavier iteration investment and broader, recurring failure
// makes a reflection more worth surfacing to a future session.
func scoreImportance(iterations, remainingIssues int, patterns, categories []string) float64 {
	score := 0.2
	score += float64(iterations) * 0.05
	score += float64(remainingIssues) * 0.05
	score += float64(len(patterns)) * 0.1
	score += float64(len(categories)) * 0.05
	if score > 1 {
		score = 1
	}
	return score
}
