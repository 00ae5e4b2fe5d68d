package types

import (
	"regexp"
	"time"
)

// Worker is the central entity of the orchestrator: a supervised
// long-lived interactive subprocess together with its orchestrator-side
// record. ralphToken is persisted server-side only and must never be
// serialized to an external consumer; see PublicWorker.
type Worker struct {
	ID               string
	Label            string
	Project          string
	Status           WorkerStatus
	Health           HealthState
	AutoAccept       bool
	AutoAcceptPaused bool
	DependsOn        []string
	ParentWorkerID   string
	ParentLabel      string
	ChildWorkerIDs   []string
	RalphMode        bool
	RalphToken       string
	Task             *Task
	CreatedAt        time.Time
	CompletedAt      time.Time
	CrashedAt        time.Time

	// SessionName is the detachable terminal session backing this
	// worker's subprocess (see pkg/session). Not part of the spec's
	// data model proper but required to re-attach across restarts.
	SessionName string
}

// PublicWorker is the external projection of Worker: every field the
// spec allows over the wire, and nothing else. Distinct Go type (not a
// marshal hook on Worker) so stripping RalphToken is a compile-time
// guarantee at every external boundary.
type PublicWorker struct {
	ID               string       `json:"id"`
	Label            string       `json:"label"`
	Project          string       `json:"project"`
	Status           WorkerStatus `json:"status"`
	Health           HealthState  `json:"health"`
	AutoAccept       bool         `json:"autoAccept"`
	AutoAcceptPaused bool         `json:"autoAcceptPaused"`
	DependsOn        []string     `json:"dependsOn"`
	ParentWorkerID   string       `json:"parentWorkerId,omitempty"`
	ParentLabel      string       `json:"parentLabel,omitempty"`
	ChildWorkerIDs   []string     `json:"childWorkerIds"`
	RalphMode        bool         `json:"ralphMode"`
	Task             *Task        `json:"task,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	CompletedAt      *time.Time   `json:"completedAt,omitempty"`
	CrashedAt        *time.Time   `json:"crashedAt,omitempty"`
}

// ToPublic projects a Worker into its external representation, omitting
// RalphToken and SessionName.
func (w *Worker) ToPublic() *PublicWorker {
	pw := &PublicWorker{
		ID:               w.ID,
		Label:            w.Label,
		Project:          w.Project,
		Status:           w.Status,
		Health:           w.Health,
		AutoAccept:       w.AutoAccept,
		AutoAcceptPaused: w.AutoAcceptPaused,
		DependsOn:        append([]string(nil), w.DependsOn...),
		ParentWorkerID:   w.ParentWorkerID,
		ParentLabel:      w.ParentLabel,
		ChildWorkerIDs:   append([]string(nil), w.ChildWorkerIDs...),
		RalphMode:        w.RalphMode,
		Task:             w.Task,
		CreatedAt:        w.CreatedAt,
	}
	if !w.CompletedAt.IsZero() {
		t := w.CompletedAt
		pw.CompletedAt = &t
	}
	if !w.CrashedAt.IsZero() {
		t := w.CrashedAt
		pw.CrashedAt = &t
	}
	return pw
}

// WorkerStatus is the worker's lifecycle status. Terminal statuses are
// WorkerStatusCompleted, WorkerStatusCrashed, WorkerStatusKilled.
type WorkerStatus string

const (
	WorkerStatusPending        WorkerStatus = "pending"
	WorkerStatusRunning        WorkerStatus = "running"
	WorkerStatusAwaitingReview WorkerStatus = "awaiting_review"
	WorkerStatusCompleted      WorkerStatus = "completed"
	WorkerStatusCrashed        WorkerStatus = "crashed"
	WorkerStatusKilled         WorkerStatus = "killed"
)

// IsTerminal reports whether s is one of the three terminal statuses.
func (s WorkerStatus) IsTerminal() bool {
	switch s {
	case WorkerStatusCompleted, WorkerStatusCrashed, WorkerStatusKilled:
		return true
	}
	return false
}

// IsTerminalSuccess reports whether s is the one terminal status that
// satisfies a dependsOn edge (spec.md §4.4 dependency gating).
func (s WorkerStatus) IsTerminalSuccess() bool {
	return s == WorkerStatusCompleted
}

// HealthState is independent of WorkerStatus and updated only by the
// health poller.
type HealthState string

const (
	HealthStarting  HealthState = "starting"
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
	HealthDead      HealthState = "dead"
)

// Task is the optional free-form work description attached at spawn.
type Task struct {
	Description string   `json:"description,omitempty"`
	Type        TaskType `json:"type,omitempty"`
	Context     Context  `json:"context,omitempty"`
}

// TaskType selects the correction loop's verification pipeline and
// max-iteration budget (spec.md §4.6).
type TaskType string

const (
	TaskTypeCode      TaskType = "code"
	TaskTypeFactual   TaskType = "factual"
	TaskTypeReasoning TaskType = "reasoning"
	TaskTypeFormat    TaskType = "format"
)

// Context is the shared semi-structured value bag used for task context
// and correction-loop context (DESIGN NOTES: "small shared
// semi-structured context type" in place of ad hoc heterogeneous maps).
type Context map[string]any

func (c Context) GetString(key string) (string, bool) {
	v, ok := c[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (c Context) GetInt(key string) (int, bool) {
	v, ok := c[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func (c Context) WithString(key, value string) Context {
	if c == nil {
		c = Context{}
	}
	c[key] = value
	return c
}

// Checkpoint is an immutable record emitted at every terminal
// transition (spec.md §3).
type Checkpoint struct {
	ID             string    `json:"id"`
	Label          string    `json:"label"`
	Project        string    `json:"project"`
	WorkerID       string    `json:"workerId"`
	CreatedAt      time.Time `json:"createdAt"`
	DiedAt         time.Time `json:"diedAt"`
	FinalHealth    HealthState `json:"finalHealth"`
	LastOutputTail []byte    `json:"lastOutputTail"`
	ChildWorkerIDs []string  `json:"childWorkerIds"`
	ParentWorkerID string    `json:"parentWorkerId,omitempty"`

	// Reason records why the checkpoint's worker reached a terminal
	// state when that reason isn't already implied by FinalHealth/the
	// worker's own status — e.g. "dependency_failed" (spec.md §4.4).
	// Empty for an ordinary complete/dismiss/crash/kill.
	Reason string `json:"reason,omitempty"`
}

// idPattern is the worker id invariant from spec.md §3: 8 lowercase hex
// characters.
var idPattern = regexp.MustCompile(`^[a-f0-9]{8}$`)

// ValidID reports whether id satisfies the worker-id invariant.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

const (
	// MaxLabelLen and MinLabelLen bound Worker.Label (spec.md §6).
	MaxLabelLen = 200
	MinLabelLen = 1

	// MaxDependsOn bounds Worker.DependsOn (spec.md §6).
	MaxDependsOn = 50

	// MaxInputBytes bounds sendInput and initialInput (spec.md §6).
	MaxInputBytes = 1 << 20
)

// ValidLabel reports whether label satisfies the length and
// control-character invariants from spec.md §3/§6.
func ValidLabel(label string) bool {
	n := len(label)
	if n < MinLabelLen || n > MaxLabelLen {
		return false
	}
	for i := 0; i < n; i++ {
		b := label[i]
		if b <= 31 || b == 127 {
			return false
		}
	}
	return true
}
