package correction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/drewrad8/strategos/pkg/types"
)

// ExecVerifier is a Verifier backed by an external verification tool:
// Command is run with Args, the candidate output is piped to its
// stdin, and it must print one JSON object to stdout describing the
// verdict. Grounded on pkg/session's os/exec-based subprocess
// supervision — no verification-tool SDK exists anywhere in the
// retrieved corpus, so an exec'd external command is this repo's
// substitute for one.
type ExecVerifier struct {
	Command string
	Args    []string
}

// execVerdict is the wire shape a verification tool must print to
// stdout: one JSON object, newline-terminated or not.
type execVerdict struct {
	Valid      bool    `json:"valid"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
	Critiques  []struct {
		Type       string `json:"type"`
		Severity   string `json:"severity"`
		Location   string `json:"location"`
		Message    string `json:"message"`
		Evidence   string `json:"evidence"`
		Suggestion string `json:"suggestion"`
	} `json:"critiques"`
}

// Verify runs the configured command once, feeding it output on stdin
// and parsing its stdout as an execVerdict. taskType and taskCtx are
// passed through as STRATEGOS_TASK_TYPE and individual
// STRATEGOS_CTX_<KEY> environment variables so a verification script
// can branch on them without a custom argv convention.
func (v *ExecVerifier) Verify(ctx context.Context, output string, taskType types.TaskType, taskCtx types.Context) (VerificationResult, error) {
	cmd := exec.CommandContext(ctx, v.Command, v.Args...)
	cmd.Stdin = bytes.NewBufferString(output)
	cmd.Env = append(os.Environ(), "STRATEGOS_TASK_TYPE="+string(taskType))
	for k, val := range taskCtx {
		if s, ok := val.(string); ok {
			cmd.Env = append(cmd.Env, "STRATEGOS_CTX_"+k+"="+s)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return VerificationResult{}, fmt.Errorf("correction: exec verifier %q: %w: %s", v.Command, err, stderr.String())
	}

	var verdict execVerdict
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &verdict); err != nil {
		return VerificationResult{}, fmt.Errorf("correction: exec verifier %q: parsing verdict: %w", v.Command, err)
	}

	result := VerificationResult{
		Valid:      verdict.Valid,
		Confidence: verdict.Confidence,
		Evidence:   verdict.Evidence,
	}
	for _, c := range verdict.Critiques {
		result.Critiques = append(result.Critiques, Critique{
			Type:       c.Type,
			Severity:   Severity(c.Severity),
			Location:   c.Location,
			Message:    c.Message,
			Evidence:   c.Evidence,
			Suggestion: c.Suggestion,
		})
	}
	return result, nil
}
