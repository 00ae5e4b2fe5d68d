package registry

import (
	"fmt"

	"github.com/drewrad8/strategos/pkg/apierr"
	"github.com/drewrad8/strategos/pkg/events"
	"github.com/drewrad8/strategos/pkg/ringbuf"
	"github.com/drewrad8/strategos/pkg/storage"
	"github.com/drewrad8/strategos/pkg/types"
)

// tailMaxBytes bounds GET /workers/:id/output (spec.md §6); large
// enough for a terminal screen's worth of scrollback.
const tailMaxBytes = 64 * 1024

// Output returns the most recently buffered output for id, per
// spec.md §6's GET /workers/:id/output.
func (r *Registry) Output(id string) ([]byte, *apierr.Error) {
	if _, aerr := r.Get(id); aerr != nil {
		return nil, aerr
	}
	tail, _ := r.rings.Get(id).Tail(tailMaxBytes)
	return tail, nil
}

// History returns a page of durably stored output entries for id, per
// spec.md §6's GET /workers/:id/history.
func (r *Registry) History(id string, offset, limit int) ([]storage.HistoryEntry, *apierr.Error) {
	if _, aerr := r.Get(id); aerr != nil {
		return nil, aerr
	}
	entries, err := r.store.History(id, offset, limit)
	if err != nil {
		return nil, apierr.Internal(fmt.Sprintf("reading history: %v", err))
	}
	return entries, nil
}

// Checkpoints returns every checkpoint record, per spec.md §6's
// GET /checkpoints.
func (r *Registry) Checkpoints() ([]*types.Checkpoint, *apierr.Error) {
	cps, err := r.store.ListCheckpoints()
	if err != nil {
		return nil, apierr.Internal(fmt.Sprintf("reading checkpoints: %v", err))
	}
	return cps, nil
}

// SubscribeOutput returns a live, backlog-replaying stream of output
// chunks for workerID with Seq > sinceSeq, per spec.md §6's streaming
// surface ("carries the client's last-seen output seq ... on
// subscription so output can be resumed without gaps").
func (r *Registry) SubscribeOutput(workerID string, sinceSeq uint64) (*ringbuf.Subscription, *apierr.Error) {
	if _, aerr := r.Get(workerID); aerr != nil {
		return nil, aerr
	}
	return r.rings.Get(workerID).Subscribe(sinceSeq), nil
}

// UnsubscribeOutput releases a subscription obtained from
// SubscribeOutput.
func (r *Registry) UnsubscribeOutput(workerID string, sub *ringbuf.Subscription) {
	r.rings.Get(workerID).UnsubscribeSub(sub)
}

// Events returns the registry's event broker, so the transport layer
// can subscribe to the full fan-out of non-output events (spec.md
// §4.5) without reaching into Registry internals.
func (r *Registry) Events() *events.Broker {
	return r.broker
}
