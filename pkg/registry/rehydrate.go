package registry

import (
	"time"

	"github.com/drewrad8/strategos/pkg/events"
	"github.com/drewrad8/strategos/pkg/session"
	"github.com/drewrad8/strategos/pkg/storage"
	"github.com/drewrad8/strategos/pkg/types"
)

// Rehydrate restores registry state from a prior process instance
// (spec.md §4.4 restart-time discovery): load the last snapshot,
// re-attach each non-terminal worker's session by name, synthesize a
// crashed record for any session that's gone, then scan the host for
// detachable sessions the snapshot never knew about. External
// connections must not be accepted until this returns (see acceptNew).
func (r *Registry) Rehydrate() error {
	workers, err := storage.LoadSnapshot(r.cfg.DataDir)
	if err != nil {
		return err
	}

	r.mu.Lock()
	for _, w := range workers {
		r.workers[w.ID] = &entry{worker: w}
		if w.Status == types.WorkerStatusRunning {
			r.runningCount++
		}
	}
	r.mu.Unlock()

	for _, w := range workers {
		if w.Status != types.WorkerStatusRunning {
			continue
		}
		r.reattachOrCrash(w)
	}

	r.discoverUnregisteredSessions()

	r.mu.Lock()
	r.acceptNew = true
	r.mu.Unlock()
	return nil
}

// reattachOrCrash attempts to re-attach w's backing session; if the
// session is gone, it synthesizes a crashed record and checkpoint
// rather than leaving a running record pointing at nothing.
func (r *Registry) reattachOrCrash(w *types.Worker) {
	sess, err := r.sessions.Attach(w.SessionName, func(chunk []byte) {
		ring := r.rings.Get(w.ID)
		ring.Append(chunk, time.Now())
	})
	if err == nil && sess.IsAlive() {
		return
	}

	r.mu.Lock()
	e, ok := r.workers[w.ID]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.mu.Lock()
	e.worker.Status = types.WorkerStatusCrashed
	e.worker.CrashedAt = time.Now()
	cp := *e.worker
	e.mu.Unlock()
	r.runningCount--
	failed := r.activatePendingDependentsLocked()
	r.persistLocked()
	r.mu.Unlock()

	r.saveCrashCheckpoint(cp.ID+"-crash-restart-"+cp.CrashedAt.Format("20060102150405"), &cp, nil)
	r.broker.Publish(events.Event{Type: events.WorkerCrashed, WorkerID: w.ID, Data: cp.ToPublic()})
	r.emitDependencyFailures(failed)
}

// discoverUnregisteredSessions scans the host's session metadata
// directory for sessions not present in the just-loaded snapshot (e.g.
// a session the orchestrator started but crashed before persisting a
// record for). Each one is registered as a rediscovered worker with a
// synthesized record, then workerDiscovered is emitted for it (spec.md
// §4.4 restart-discovery step 3).
func (r *Registry) discoverUnregisteredSessions() {
	names, err := session.Discover()
	if err != nil {
		r.logger.Warn().Err(err).Msg("discover sessions")
		return
	}

	r.mu.Lock()
	known := make(map[string]bool, len(r.workers))
	for _, e := range r.workers {
		e.mu.Lock()
		known[e.worker.SessionName] = true
		e.mu.Unlock()
	}

	var rediscovered []*types.Worker
	for _, name := range names {
		if known[name] {
			continue
		}
		id, err := generateID()
		if err != nil {
			r.logger.Warn().Err(err).Str("sessionName", name).Msg("generate id for rediscovered session")
			continue
		}
		w := &types.Worker{
			ID:          id,
			Label:       name,
			Status:      types.WorkerStatusRunning,
			Health:      types.HealthDegraded,
			CreatedAt:   time.Now(),
			SessionName: name,
		}
		r.workers[id] = &entry{worker: w}
		r.runningCount++
		rediscovered = append(rediscovered, w)
	}
	if len(rediscovered) > 0 {
		r.persistLocked()
	}
	r.mu.Unlock()

	for _, w := range rediscovered {
		r.broker.Publish(events.Event{
			Type:     events.WorkerDiscovered,
			WorkerID: w.ID,
			Data:     w.ToPublic(),
		})
	}
}
