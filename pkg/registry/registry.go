// Package registry is the worker lifecycle manager at the core of the
// orchestrator (spec.md §4.4): admission control, duplicate detection,
// dependency gating, parent/child linkage, and the registry-wide write
// critical section described in spec.md §5. Grounded on the teacher's
// pkg/worker (spawn/lifecycle shape) and pkg/worker/health_monitor.go
// (ticker-driven health polling, generalized in health.go), with the
// raft-apply indirection of pkg/manager/manager.go flattened to direct
// in-process locking since spec.md §1 excludes distributed consensus.
package registry

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/drewrad8/strategos/pkg/apierr"
	"github.com/drewrad8/strategos/pkg/events"
	"github.com/drewrad8/strategos/pkg/ringbuf"
	"github.com/drewrad8/strategos/pkg/session"
	"github.com/drewrad8/strategos/pkg/storage"
	"github.com/drewrad8/strategos/pkg/types"
)

// Config bundles every tunable from spec.md §4.4/§5/§6.
type Config struct {
	ProjectsBase       string
	DataDir            string
	ConcurrencyCap     int
	RingBufferBytes    int
	HealthPollInterval time.Duration
	UnhealthyThreshold int
	HealthyThreshold   int
	SweepInterval      time.Duration
	RetentionWindow    time.Duration
	ShutdownDeadline   time.Duration

	// AgentCommand/AgentArgs launch the interactive agent CLI every
	// worker runs. The spec's public spawn fields never name a command
	// (spec.md §6's POST /workers body has no such field) — the
	// orchestrator picks one binary for its fleet, configured once here
	// rather than per spawn. SpawnSpec.Command/Args exist only to let a
	// template override it (spec.md §6's spawn-from-template).
	AgentCommand string
	AgentArgs    []string
}

// DefaultConfig matches the defaults named in spec.md §6's environment
// table.
func DefaultConfig() Config {
	return Config{
		ConcurrencyCap:     20,
		RingBufferBytes:    256 << 10,
		HealthPollInterval: 5 * time.Second,
		UnhealthyThreshold: 3,
		HealthyThreshold:   2,
		SweepInterval:      30 * time.Second,
		RetentionWindow:    24 * time.Hour,
		ShutdownDeadline:   15 * time.Second,
	}
}

// SpawnSpec is the caller-supplied input to Spawn (spec.md §4.4 spawn
// operation table). Command/Args default to the Registry's configured
// AgentCommand/AgentArgs when empty.
type SpawnSpec struct {
	Project        string
	Label          string
	Command        string
	Args           []string
	AutoAccept     bool
	RalphMode      bool
	AllowDuplicate bool
	DependsOn      []string
	ParentWorkerID string
	Task           *types.Task
	InitialInput   []byte
}

// entry is the registry's in-process record: the shared Worker plus the
// per-worker lock that guards fields registry-shape operations don't
// touch (status, settings, input) per spec.md §5's lock-ordering rule
// (registry lock, then per-worker lock, never the reverse).
type entry struct {
	mu     sync.Mutex
	worker *types.Worker
}

// Registry is the worker lifecycle manager. One Registry per
// orchestrator process.
type Registry struct {
	cfg Config

	mu           sync.RWMutex
	workers      map[string]*entry
	runningCount int

	store    storage.Store
	rings    *ringbuf.Manager
	sessions *session.Manager
	broker   *events.Broker
	logger   zerolog.Logger

	stopCh    chan struct{}
	stopOnce  sync.Once
	acceptNew bool
}

// New constructs a Registry wired to the given durable store, event
// broker, and session manager. Call Rehydrate before StartHealthPoller
// and StartSweeper to restore state from a prior process instance
// (spec.md §4.4 restart-time discovery).
func New(cfg Config, store storage.Store, broker *events.Broker, logger zerolog.Logger) *Registry {
	r := &Registry{
		cfg:       cfg,
		workers:   make(map[string]*entry),
		store:     store,
		broker:    broker,
		sessions:  session.NewManager(),
		logger:    logger,
		stopCh:    make(chan struct{}),
		acceptNew: false,
	}
	r.rings = ringbuf.NewManager(cfg.RingBufferBytes, r.mirrorToHistory)
	return r
}

// mirrorToHistory is installed as the ring's OnAppend hook so every
// in-memory chunk is also durably persisted and fanned out, keeping
// tail and history on one synchronous append path (DESIGN.md Open
// Question resolution #3).
func (r *Registry) mirrorToHistory(workerID string, c ringbuf.Chunk) {
	if err := r.store.AppendHistory(workerID, c.Seq, c.Bytes, c.At); err != nil {
		r.logger.Error().Err(err).Str("workerId", workerID).Msg("append history failed")
	}
	r.broker.Publish(events.Event{
		Type:     events.WorkerOutput,
		WorkerID: workerID,
		Seq:      c.Seq,
		Bytes:    c.Bytes,
	})
}

// generateID returns a new 8-hex-character worker id, grounded on
// pkg/manager/token.go's crypto/rand token generation.
func generateID() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("registry: generate id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func generateRalphToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("registry: generate ralph token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// validateSpawn checks the invariants from spec.md §3/§6 that don't
// require holding the registry lock.
func (r *Registry) validateSpawn(spec SpawnSpec) *apierr.Error {
	if !types.ValidLabel(spec.Label) {
		return apierr.Validation("label", "must be 1-200 bytes with no control characters")
	}
	if len(spec.DependsOn) > types.MaxDependsOn {
		return apierr.Validation("dependsOn", fmt.Sprintf("must not exceed %d entries", types.MaxDependsOn))
	}
	if len(spec.InitialInput) > types.MaxInputBytes {
		return apierr.Validation("initialInput", fmt.Sprintf("must not exceed %d bytes", types.MaxInputBytes))
	}
	if err := r.validateProjectPath(spec.Project); err != nil {
		return err
	}
	return nil
}

func (r *Registry) validateProjectPath(project string) *apierr.Error {
	if project == "" {
		return apierr.Validation("project", "must not be empty")
	}
	clean := filepath.Clean(project)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return apierr.Validation("project", "must be a relative path under the projects base directory with no \"..\" traversal")
	}
	full := filepath.Join(r.cfg.ProjectsBase, clean)
	info, err := os.Stat(full)
	if err != nil || !info.IsDir() {
		return apierr.Validation("project", "must exist under the projects base directory")
	}
	return nil
}

// Spawn creates a new worker record and its backing detachable session
// (spec.md §4.4 spawn operation).
func (r *Registry) Spawn(spec SpawnSpec) (*types.Worker, *apierr.Error) {
	if aerr := r.validateSpawn(spec); aerr != nil {
		return nil, aerr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.acceptNew {
		return nil, apierr.Internal("registry is still rehydrating from a prior instance")
	}
	if r.runningCount >= r.cfg.ConcurrencyCap {
		return nil, apierr.CapacityExceeded("concurrency cap reached", 1000)
	}
	if !spec.AllowDuplicate {
		if dup := r.findDuplicateLocked(spec.Project, spec.Label); dup != nil {
			return nil, apierr.Duplicate(fmt.Sprintf("worker %q already running for project %q", spec.Label, spec.Project))
		}
	}
	for _, depID := range spec.DependsOn {
		if _, ok := r.workers[depID]; !ok {
			return nil, apierr.Validation("dependsOn", fmt.Sprintf("unknown worker id %q", depID))
		}
	}
	if spec.ParentWorkerID != "" {
		if _, ok := r.workers[spec.ParentWorkerID]; !ok {
			return nil, apierr.Validation("parentWorkerId", fmt.Sprintf("unknown worker id %q", spec.ParentWorkerID))
		}
	}

	id, err := generateID()
	if err != nil {
		return nil, apierr.Internal(err.Error())
	}
	for _, exists := r.workers[id]; exists; _, exists = r.workers[id] {
		if id, err = generateID(); err != nil {
			return nil, apierr.Internal(err.Error())
		}
	}

	ralphToken := ""
	if spec.RalphMode {
		if ralphToken, err = generateRalphToken(); err != nil {
			return nil, apierr.Internal(err.Error())
		}
	}

	status := types.WorkerStatusRunning
	if len(spec.DependsOn) > 0 && !r.dependenciesSatisfiedLocked(spec.DependsOn) {
		status = types.WorkerStatusPending
	}

	var parentLabel string
	if spec.ParentWorkerID != "" {
		parent := r.workers[spec.ParentWorkerID]
		parent.mu.Lock()
		parentLabel = parent.worker.Label
		parent.mu.Unlock()
	}

	w := &types.Worker{
		ID:             id,
		Label:          spec.Label,
		Project:        spec.Project,
		Status:         status,
		Health:         types.HealthStarting,
		AutoAccept:     spec.AutoAccept,
		DependsOn:      append([]string(nil), spec.DependsOn...),
		ParentWorkerID: spec.ParentWorkerID,
		ParentLabel:    parentLabel,
		RalphMode:      spec.RalphMode,
		RalphToken:     ralphToken,
		Task:           spec.Task,
		CreatedAt:      time.Now(),
		SessionName:    id,
	}

	if status == types.WorkerStatusRunning {
		command, args := spec.Command, spec.Args
		if command == "" {
			command, args = r.cfg.AgentCommand, r.cfg.AgentArgs
		}
		if aerr := r.startSessionLocked(w, command, args, spec.InitialInput); aerr != nil {
			return nil, aerr
		}
		r.runningCount++
	}

	r.workers[id] = &entry{worker: w}
	if spec.ParentWorkerID != "" {
		parent := r.workers[spec.ParentWorkerID]
		parent.mu.Lock()
		parent.worker.ChildWorkerIDs = append(parent.worker.ChildWorkerIDs, id)
		parent.mu.Unlock()
	}

	r.persistLocked()
	r.broker.Publish(events.Event{Type: events.WorkerSpawned, WorkerID: id, Data: w.ToPublic()})
	return w, nil
}

// startSessionLocked launches the backing subprocess. Callers must hold
// r.mu.
func (r *Registry) startSessionLocked(w *types.Worker, command string, args []string, initialInput []byte) *apierr.Error {
	dir := filepath.Join(r.cfg.ProjectsBase, w.Project)
	sess, err := r.sessions.Start(w.SessionName, command, args, dir, nil, func(chunk []byte) {
		ring := r.rings.Get(w.ID)
		ring.Append(chunk, time.Now())
	})
	if err != nil {
		return apierr.Internal(fmt.Sprintf("start session: %v", err))
	}
	if len(initialInput) > 0 {
		if err := sess.Write(initialInput); err != nil {
			return apierr.Internal(fmt.Sprintf("write initial input: %v", err))
		}
	}
	return nil
}

// findDuplicateLocked implements the (project,label) exact-match
// duplicate check against non-terminal workers (spec.md §4.4). Callers
// must hold r.mu.
func (r *Registry) findDuplicateLocked(project, label string) *entry {
	for _, e := range r.workers {
		if e.worker.Status.IsTerminal() {
			continue
		}
		if e.worker.Project == project && e.worker.Label == label {
			return e
		}
	}
	return nil
}

// dependenciesSatisfiedLocked reports whether every dependency id has
// reached the one terminal status that satisfies a dependsOn edge.
// Callers must hold r.mu.
func (r *Registry) dependenciesSatisfiedLocked(dependsOn []string) bool {
	for _, depID := range dependsOn {
		dep, ok := r.workers[depID]
		if !ok || !dep.worker.Status.IsTerminalSuccess() {
			return false
		}
	}
	return true
}

// Get returns a snapshot copy of the worker record for id.
func (r *Registry) Get(id string) (*types.Worker, *apierr.Error) {
	r.mu.RLock()
	e, ok := r.workers[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apierr.NotFound(fmt.Sprintf("worker %q not found", id))
	}
	e.mu.Lock()
	cp := *e.worker
	e.mu.Unlock()
	return &cp, nil
}

// List returns a snapshot of every worker currently tracked.
func (r *Registry) List() []*types.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Worker, 0, len(r.workers))
	for _, e := range r.workers {
		e.mu.Lock()
		cp := *e.worker
		e.mu.Unlock()
		out = append(out, &cp)
	}
	return out
}

// Patch updates the worker's label. It does not touch registry shape
// (map/graph/capacity), so it only needs the per-worker lock, taken
// after a read-locked lookup per spec.md §5's ordering rule.
func (r *Registry) Patch(id, label string) (*types.Worker, *apierr.Error) {
	if !types.ValidLabel(label) {
		return nil, apierr.Validation("label", "must be 1-200 bytes with no control characters")
	}
	r.mu.RLock()
	e, ok := r.workers[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apierr.NotFound(fmt.Sprintf("worker %q not found", id))
	}
	e.mu.Lock()
	e.worker.Label = label
	cp := *e.worker
	e.mu.Unlock()

	r.mu.Lock()
	r.persistLocked()
	r.mu.Unlock()
	r.broker.Publish(events.Event{Type: events.WorkerSettingsChanged, WorkerID: id, Data: cp.ToPublic()})
	return &cp, nil
}

// SendInput writes bytes to the worker's interactive subprocess
// (spec.md §4.4 sendInput operation). The worker must be alive and
// running.
func (r *Registry) SendInput(id string, data []byte) *apierr.Error {
	if len(data) > types.MaxInputBytes {
		return apierr.Validation("input", fmt.Sprintf("must not exceed %d bytes", types.MaxInputBytes))
	}
	r.mu.RLock()
	e, ok := r.workers[id]
	r.mu.RUnlock()
	if !ok {
		return apierr.NotFound(fmt.Sprintf("worker %q not found", id))
	}

	e.mu.Lock()
	status := e.worker.Status
	e.mu.Unlock()
	if status != types.WorkerStatusRunning {
		return apierr.IllegalTransition(fmt.Sprintf("worker %q is %s, not running", id, status))
	}

	sess, ok := r.sessions.Get(id)
	if !ok {
		return apierr.IllegalTransition(fmt.Sprintf("worker %q has no attached session", id))
	}
	if err := sess.Write(data); err != nil {
		return apierr.IllegalTransition(fmt.Sprintf("worker %q subprocess not alive", id))
	}
	return nil
}

// Settings updates a worker's autoAccept flag and its pause state.
func (r *Registry) Settings(id string, autoAccept *bool, autoAcceptPaused *bool) (*types.Worker, *apierr.Error) {
	r.mu.RLock()
	e, ok := r.workers[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apierr.NotFound(fmt.Sprintf("worker %q not found", id))
	}

	e.mu.Lock()
	if autoAccept != nil {
		e.worker.AutoAccept = *autoAccept
	}
	if autoAcceptPaused != nil {
		e.worker.AutoAcceptPaused = *autoAcceptPaused
	}
	cp := *e.worker
	e.mu.Unlock()

	r.mu.Lock()
	r.persistLocked()
	r.mu.Unlock()
	r.broker.Publish(events.Event{Type: events.WorkerSettingsChanged, WorkerID: id, Data: cp.ToPublic()})
	return &cp, nil
}

// Complete transitions a running worker to awaiting_review (spec.md
// §4.4's complete operation). Idempotent: a worker already in
// awaiting_review is returned as-is rather than erroring, satisfying
// spec.md §8's "double complete is idempotent" invariant.
func (r *Registry) Complete(id string) (*types.Worker, *apierr.Error) {
	r.mu.Lock()
	e, ok := r.workers[id]
	if !ok {
		r.mu.Unlock()
		return nil, apierr.NotFound(fmt.Sprintf("worker %q not found", id))
	}

	e.mu.Lock()
	status := e.worker.Status
	if status == types.WorkerStatusAwaitingReview {
		cp := *e.worker
		e.mu.Unlock()
		r.mu.Unlock()
		return &cp, nil
	}
	if status != types.WorkerStatusRunning {
		e.mu.Unlock()
		r.mu.Unlock()
		return nil, apierr.IllegalTransition(fmt.Sprintf("worker %q is %s, not running", id, status))
	}
	e.worker.Status = types.WorkerStatusAwaitingReview
	cp := *e.worker
	e.mu.Unlock()

	r.runningCount--
	r.persistLocked()
	r.mu.Unlock()

	r.broker.Publish(events.Event{Type: events.WorkerStatusChanged, WorkerID: id, Data: cp.ToPublic()})
	return &cp, nil
}

// Dismiss is the sole canonical awaiting_review -> completed transition
// (DESIGN.md Open Question resolution #1).
func (r *Registry) Dismiss(id string) (*types.Worker, *apierr.Error) {
	r.mu.RLock()
	e, ok := r.workers[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apierr.NotFound(fmt.Sprintf("worker %q not found", id))
	}
	e.mu.Lock()
	status := e.worker.Status
	e.mu.Unlock()
	if status != types.WorkerStatusAwaitingReview {
		return nil, apierr.IllegalTransition(fmt.Sprintf("worker %q is %s, not awaiting_review", id, status))
	}
	return r.terminalTransition(id, types.WorkerStatusCompleted, events.WorkerStatusChanged)
}

func (r *Registry) terminalTransition(id string, to types.WorkerStatus, evType events.Type) (*types.Worker, *apierr.Error) {
	r.mu.Lock()
	e, ok := r.workers[id]
	if !ok {
		r.mu.Unlock()
		return nil, apierr.NotFound(fmt.Sprintf("worker %q not found", id))
	}

	e.mu.Lock()
	if e.worker.Status.IsTerminal() {
		e.mu.Unlock()
		r.mu.Unlock()
		return nil, apierr.IllegalTransition(fmt.Sprintf("worker %q already %s", id, e.worker.Status))
	}
	wasRunning := e.worker.Status == types.WorkerStatusRunning
	e.worker.Status = to
	e.worker.CompletedAt = time.Now()
	cp := *e.worker
	e.mu.Unlock()

	if wasRunning {
		r.runningCount--
	}
	failed := r.activatePendingDependentsLocked()
	r.persistLocked()
	r.mu.Unlock()

	tail, _ := r.rings.Get(id).Tail(4096)
	r.saveCrashCheckpoint(id+"-"+string(to)+"-"+cp.CompletedAt.Format("20060102150405"), &cp, tail)

	r.broker.Publish(events.Event{Type: evType, WorkerID: id, Data: cp.ToPublic()})
	r.emitDependencyFailures(failed)
	return &cp, nil
}

// activatePendingDependentsLocked promotes pending workers whose
// dependsOn set just became fully satisfied, and kills (reason
// dependency_failed) any pending worker depending on a worker that
// just reached crashed or killed (spec.md §4.4). Callers must hold
// r.mu; the returned workers still need their checkpoint/event emitted
// once the caller releases it.
func (r *Registry) activatePendingDependentsLocked() []*types.Worker {
	var failed []*types.Worker
	for _, e := range r.workers {
		e.mu.Lock()
		switch {
		case e.worker.Status != types.WorkerStatusPending:
		case r.anyDependencyFailedLocked(e.worker.DependsOn):
			e.worker.Status = types.WorkerStatusKilled
			cp := *e.worker
			failed = append(failed, &cp)
		case r.dependenciesSatisfiedLocked(e.worker.DependsOn):
			e.worker.Status = types.WorkerStatusRunning
		}
		e.mu.Unlock()
	}
	return failed
}

// anyDependencyFailedLocked reports whether any id in dependsOn names a
// worker that has reached crashed or killed. Callers must hold r.mu.
func (r *Registry) anyDependencyFailedLocked(dependsOn []string) bool {
	for _, depID := range dependsOn {
		dep, ok := r.workers[depID]
		if !ok {
			continue
		}
		if dep.worker.Status == types.WorkerStatusCrashed || dep.worker.Status == types.WorkerStatusKilled {
			return true
		}
	}
	return false
}

// emitDependencyFailures saves a dependency_failed checkpoint and
// publishes workerKilled for every worker activatePendingDependentsLocked
// killed. Must be called without r.mu held.
func (r *Registry) emitDependencyFailures(failed []*types.Worker) {
	for _, w := range failed {
		tail, _ := r.rings.Get(w.ID).Tail(4096)
		ck := checkpointFromWorker(w.ID+"-depfail-"+time.Now().Format("20060102150405"), w, tail, "dependency_failed")
		if err := r.store.SaveCheckpoint(ck); err != nil {
			r.logger.Error().Err(err).Str("workerId", w.ID).Msg("save dependency_failed checkpoint")
		} else {
			r.broker.Publish(events.Event{Type: events.CheckpointCreated, WorkerID: w.ID, Data: ck})
		}
		r.broker.Publish(events.Event{Type: events.WorkerKilled, WorkerID: w.ID, Data: w.ToPublic()})
	}
}

// Kill forcibly terminates a worker's subprocess and marks it killed.
// force selects SIGKILL over SIGTERM.
func (r *Registry) Kill(id string, force bool) (*types.Worker, *apierr.Error) {
	r.mu.Lock()
	e, ok := r.workers[id]
	if !ok {
		r.mu.Unlock()
		return nil, apierr.NotFound(fmt.Sprintf("worker %q not found", id))
	}

	e.mu.Lock()
	if e.worker.Status.IsTerminal() {
		// Kill is idempotent on any terminal worker (spec.md §4.4, §8):
		// return the current state rather than erroring.
		cp := *e.worker
		e.mu.Unlock()
		r.mu.Unlock()
		return &cp, nil
	}
	wasRunning := e.worker.Status == types.WorkerStatusRunning
	e.worker.Status = types.WorkerStatusKilled
	cp := *e.worker
	e.mu.Unlock()

	if wasRunning {
		r.runningCount--
	}
	failed := r.activatePendingDependentsLocked()
	r.persistLocked()
	r.mu.Unlock()

	if err := r.sessions.Kill(id, force); err != nil {
		r.logger.Warn().Err(err).Str("workerId", id).Msg("kill session")
	}
	tail, _ := r.rings.Get(id).Tail(4096)
	r.saveCrashCheckpoint(id+"-kill-"+time.Now().Format("20060102150405"), &cp, tail)
	r.broker.Publish(events.Event{Type: events.WorkerKilled, WorkerID: id, Data: cp.ToPublic()})
	r.emitDependencyFailures(failed)
	return &cp, nil
}

// Children returns the direct children of id. ChildWorkerIDs is
// retained across a child's kill (historical linkage, spec.md §4.4).
func (r *Registry) Children(id string) ([]*types.Worker, *apierr.Error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.workers[id]
	if !ok {
		return nil, apierr.NotFound(fmt.Sprintf("worker %q not found", id))
	}
	e.mu.Lock()
	childIDs := append([]string(nil), e.worker.ChildWorkerIDs...)
	e.mu.Unlock()

	out := make([]*types.Worker, 0, len(childIDs))
	for _, cid := range childIDs {
		if ce, ok := r.workers[cid]; ok {
			ce.mu.Lock()
			cp := *ce.worker
			ce.mu.Unlock()
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Siblings returns every other worker sharing id's parent.
func (r *Registry) Siblings(id string) ([]*types.Worker, *apierr.Error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.workers[id]
	if !ok {
		return nil, apierr.NotFound(fmt.Sprintf("worker %q not found", id))
	}
	e.mu.Lock()
	parentID := e.worker.ParentWorkerID
	e.mu.Unlock()
	if parentID == "" {
		return nil, nil
	}

	parent, ok := r.workers[parentID]
	if !ok {
		return nil, nil
	}
	parent.mu.Lock()
	childIDs := append([]string(nil), parent.worker.ChildWorkerIDs...)
	parent.mu.Unlock()

	out := make([]*types.Worker, 0, len(childIDs))
	for _, cid := range childIDs {
		if cid == id {
			continue
		}
		if ce, ok := r.workers[cid]; ok {
			ce.mu.Lock()
			cp := *ce.worker
			ce.mu.Unlock()
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Dependencies returns the workers named in id's dependsOn set.
func (r *Registry) Dependencies(id string) ([]*types.Worker, *apierr.Error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.workers[id]
	if !ok {
		return nil, apierr.NotFound(fmt.Sprintf("worker %q not found", id))
	}
	e.mu.Lock()
	depIDs := append([]string(nil), e.worker.DependsOn...)
	e.mu.Unlock()

	out := make([]*types.Worker, 0, len(depIDs))
	for _, did := range depIDs {
		if de, ok := r.workers[did]; ok {
			de.mu.Lock()
			cp := *de.worker
			de.mu.Unlock()
			out = append(out, &cp)
		}
	}
	return out, nil
}

// persistLocked writes the full registry snapshot atomically. Callers
// must hold r.mu (read or write; the snapshot copy is taken under each
// entry's own lock so a concurrent per-worker mutation is never torn).
func (r *Registry) persistLocked() {
	snapshot := make([]*types.Worker, 0, len(r.workers))
	for _, e := range r.workers {
		e.mu.Lock()
		cp := *e.worker
		e.mu.Unlock()
		snapshot = append(snapshot, &cp)
	}
	if err := storage.SaveSnapshot(r.cfg.DataDir, snapshot); err != nil {
		r.logger.Error().Err(err).Msg("persist registry snapshot")
	}
}

// persistSync is the variant called from the graceful-shutdown path
// (Shutdown): it takes the write lock itself rather than assuming the
// caller already holds it.
func (r *Registry) persistSync() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persistLocked()
}
