package correction

import (
	"regexp"
	"strings"
)

// Severity is the severity band of a Critique.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Critique is one issue a verification tool found (spec.md §4.6).
type Critique struct {
	Type       string
	Severity   Severity
	Location   string
	Message    string
	Evidence   string
	Suggestion string
}

var (
	digitsPattern     = regexp.MustCompile(`\d+`)
	quotedLitPattern  = regexp.MustCompile(`"[^"]*"|'[^']*'`)
)

// normalizeCritiqueMessage applies spec.md §4.6's stagnation-detection
// normalization: lower-case, digits collapsed to "N", quoted literals
// stripped. Two critiques differing only in a line number or a quoted
// value are treated as the same critique across iterations.
func normalizeCritiqueMessage(msg string) string {
	m := strings.ToLower(msg)
	m = quotedLitPattern.ReplaceAllString(m, "")
	m = digitsPattern.ReplaceAllString(m, "N")
	return strings.TrimSpace(m)
}

// critiqueKey identifies a critique by (type, normalized message).
func critiqueKey(c Critique) string {
	return c.Type + "|" + normalizeCritiqueMessage(c.Message)
}

// critiqueSet builds the deduplicated key set used for subset
// comparison between iterations.
func critiqueSet(critiques []Critique) map[string]struct{} {
	set := make(map[string]struct{}, len(critiques))
	for _, c := range critiques {
		set[critiqueKey(c)] = struct{}{}
	}
	return set
}

// isSubset reports whether every key in a is also in b — used to
// detect "no new critiques" stagnation (spec.md §4.6).
func isSubset(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// hasErrorSeverity reports whether any critique is error-severity.
func hasErrorSeverity(critiques []Critique) bool {
	for _, c := range critiques {
		if c.Severity == SeverityError {
			return true
		}
	}
	return false
}
