package registry

import (
	"time"

	"github.com/drewrad8/strategos/pkg/types"
)

// checkpointFromWorker builds the immutable Checkpoint record captured
// at every terminal transition (spec.md §3). reason is usually empty;
// it names the transition when the status alone doesn't explain it
// (e.g. "dependency_failed").
func checkpointFromWorker(id string, w *types.Worker, tail []byte, reason string) *types.Checkpoint {
	died := w.CrashedAt
	if died.IsZero() {
		died = w.CompletedAt
	}
	return &types.Checkpoint{
		ID:             id,
		Label:          w.Label,
		Project:        w.Project,
		WorkerID:       w.ID,
		CreatedAt:      w.CreatedAt,
		DiedAt:         died,
		FinalHealth:    w.Health,
		LastOutputTail: tail,
		ChildWorkerIDs: append([]string(nil), w.ChildWorkerIDs...),
		ParentWorkerID: w.ParentWorkerID,
		Reason:         reason,
	}
}

// StartSweeper begins the periodic sweep: reap terminal records past
// the retention window, verify running workers are still alive, and
// re-persist (spec.md §4.4 periodic sweep).
func (r *Registry) StartSweeper() {
	go r.sweepLoop()
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) sweep() {
	now := time.Now()
	r.mu.Lock()
	var reaped []string
	for id, e := range r.workers {
		e.mu.Lock()
		status := e.worker.Status
		diedAt := e.worker.CrashedAt
		if diedAt.IsZero() {
			diedAt = e.worker.CompletedAt
		}
		e.mu.Unlock()

		if status.IsTerminal() && !diedAt.IsZero() && now.Sub(diedAt) > r.cfg.RetentionWindow {
			reaped = append(reaped, id)
		}
	}
	for _, id := range reaped {
		delete(r.workers, id)
		r.rings.Remove(id)
	}
	if len(reaped) > 0 {
		r.persistLocked()
	}
	r.mu.Unlock()

	r.verifyRunningAlive()
}

// verifyRunningAlive double-checks that every worker recorded as
// running still has a live subprocess, catching a crash the health
// poller's threshold hasn't yet promoted to dead (a belt-and-braces
// check, not the primary detection path).
func (r *Registry) verifyRunningAlive() {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.workers))
	for _, e := range r.workers {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		status := e.worker.Status
		sessionName := e.worker.SessionName
		e.mu.Unlock()
		if status != types.WorkerStatusRunning {
			continue
		}
		sess, ok := r.sessions.Get(sessionName)
		if ok && !sess.IsAlive() {
			r.handleCrash(sessionName)
		}
	}
}

// Shutdown stops new spawns, halts background timers, and flushes a
// final synchronous snapshot, bounded by cfg.ShutdownDeadline (spec.md
// §4.4 graceful shutdown).
func (r *Registry) Shutdown() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.acceptNew = false
		r.mu.Unlock()
		close(r.stopCh)
	})

	done := make(chan struct{})
	go func() {
		r.persistSync()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(r.cfg.ShutdownDeadline):
		r.logger.Warn().Msg("shutdown deadline exceeded, snapshot may be stale")
	}
}
