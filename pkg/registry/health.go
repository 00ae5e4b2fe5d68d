package registry

import (
	"time"

	"github.com/drewrad8/strategos/pkg/events"
	"github.com/drewrad8/strategos/pkg/types"
)

// healthCounters tracks the consecutive-poll streaks that drive
// threshold-based health promotion/demotion (spec.md §4.4 health
// model). Kept out of entry/types.Worker since it is poller-private
// bookkeeping, not part of the worker's external record.
type healthCounters struct {
	consecutiveUnhealthy int
	consecutiveHealthy   int
}

// StartHealthPoller begins the background health-polling loop,
// grounded on the teacher's ticker-driven pkg/worker/health_monitor.go
// shape (NewHealthMonitor/Start/monitorLoop), generalized from
// container health checks to worker liveness signals: subprocess
// alive, session attached, and whether the worker's output ring has
// ever received a chunk. The output signal does not look at how recent
// that output is, and no progress heuristic is computed.
func (r *Registry) StartHealthPoller() {
	go r.healthLoop()
}

func (r *Registry) healthLoop() {
	ticker := time.NewTicker(r.cfg.HealthPollInterval)
	defer ticker.Stop()

	counters := make(map[string]*healthCounters)
	for {
		select {
		case <-ticker.C:
			r.pollHealth(counters)
		case <-r.stopCh:
			return
		}
	}
}

// pollHealth evaluates every running worker's liveness signals once and
// applies threshold-based state transitions.
func (r *Registry) pollHealth(counters map[string]*healthCounters) {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.workers))
	for _, e := range r.workers {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		id := e.worker.ID
		status := e.worker.Status
		sessionName := e.worker.SessionName
		e.mu.Unlock()

		if status != types.WorkerStatusRunning {
			delete(counters, id)
			continue
		}

		c, ok := counters[id]
		if !ok {
			c = &healthCounters{}
			counters[id] = c
		}
		r.evaluateWorkerHealth(e, sessionName, c)
	}
}

// evaluateWorkerHealth aggregates the liveness signals into one of the
// five HealthState values and advances counters toward the
// unhealthy/dead and degraded/healthy thresholds.
func (r *Registry) evaluateWorkerHealth(e *entry, sessionName string, c *healthCounters) {
	sess, attached := r.sessions.Get(sessionName)
	alive := attached && sess.IsAlive()

	recentOutput := false
	if attached {
		if ring := r.rings.Get(sessionName); ring != nil {
			_, lastSeq := ring.Tail(0)
			recentOutput = lastSeq > 0
		}
	}

	var next types.HealthState
	switch {
	case !alive:
		next = types.HealthUnhealthy
	case attached && recentOutput:
		next = types.HealthHealthy
	case attached:
		next = types.HealthDegraded
	default:
		next = types.HealthUnhealthy
	}

	if next == types.HealthUnhealthy || next == types.HealthDegraded {
		c.consecutiveUnhealthy++
		c.consecutiveHealthy = 0
	} else {
		c.consecutiveHealthy++
		c.consecutiveUnhealthy = 0
	}

	e.mu.Lock()
	prev := e.worker.Health
	switch {
	case !alive && c.consecutiveUnhealthy >= r.cfg.UnhealthyThreshold:
		e.worker.Health = types.HealthDead
	case prev == types.HealthDead:
		// dead is terminal for health; status-level crash handling owns recovery
	case next == types.HealthHealthy && c.consecutiveHealthy >= r.cfg.HealthyThreshold:
		e.worker.Health = types.HealthHealthy
	case next != types.HealthHealthy:
		e.worker.Health = next
	}
	changed := e.worker.Health != prev
	cp := *e.worker
	e.mu.Unlock()

	if !changed {
		return
	}

	r.broker.Publish(events.Event{Type: events.WorkerHealthChanged, WorkerID: cp.ID, Data: cp.ToPublic()})

	if cp.Health == types.HealthDead {
		r.handleCrash(cp.ID)
	}
}

// handleCrash marks a worker crashed, captures a checkpoint, and emits
// workerCrashed (spec.md §4.4 crash handling). The record is retained
// until dismissed or reaped by sweep.
func (r *Registry) handleCrash(id string) {
	r.mu.Lock()
	e, ok := r.workers[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.mu.Lock()
	if e.worker.Status.IsTerminal() {
		e.mu.Unlock()
		r.mu.Unlock()
		return
	}
	wasRunning := e.worker.Status == types.WorkerStatusRunning
	e.worker.Status = types.WorkerStatusCrashed
	e.worker.CrashedAt = time.Now()
	cp := *e.worker
	e.mu.Unlock()

	if wasRunning {
		r.runningCount--
	}
	failed := r.activatePendingDependentsLocked()
	r.persistLocked()
	r.mu.Unlock()

	tail, _ := r.rings.Get(id).Tail(4096)
	cpID := cp.ID + "-crash-" + cp.CrashedAt.Format("20060102150405")
	r.saveCrashCheckpoint(cpID, &cp, tail)

	r.broker.Publish(events.Event{Type: events.WorkerCrashed, WorkerID: id, Data: cp.ToPublic()})
	r.emitDependencyFailures(failed)
}

func (r *Registry) saveCrashCheckpoint(id string, w *types.Worker, tail []byte) {
	ck := checkpointFromWorker(id, w, tail, "")
	if err := r.store.SaveCheckpoint(ck); err != nil {
		r.logger.Error().Err(err).Str("workerId", w.ID).Msg("save crash checkpoint")
		return
	}
	r.broker.Publish(events.Event{Type: events.CheckpointCreated, WorkerID: w.ID, Data: ck})
}
