package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/drewrad8/strategos/pkg/apierr"
	"github.com/drewrad8/strategos/pkg/breaker"
	"github.com/drewrad8/strategos/pkg/correction"
	"github.com/drewrad8/strategos/pkg/types"
)

// producerIdleWindow is how long workerProducer waits for the
// subprocess's output ring to go quiet after a critique is sent before
// treating the accumulated output as the revision. A fixed idle window
// rather than a single read mirrors how an interactive agent actually
// answers: output trickles in over several chunks, not one.
const producerIdleWindow = 2 * time.Second

// workerProducer adapts a registry-managed worker's live session into
// a correction.Producer: "send a critique" becomes SendInput, and
// "await the revision" becomes draining the worker's output ring
// subscription until it falls quiet.
type workerProducer struct {
	reg      *Registry
	workerID string
}

func (p *workerProducer) SendCritique(ctx context.Context, formattedCritique string, _ types.Context) (string, error) {
	sinceSeq := p.reg.rings.Get(p.workerID).LastSeq()
	sub, aerr := p.reg.SubscribeOutput(p.workerID, sinceSeq)
	if aerr != nil {
		return "", aerr
	}
	defer p.reg.UnsubscribeOutput(p.workerID, sub)

	if aerr := p.reg.SendInput(p.workerID, []byte(formattedCritique+"\n")); aerr != nil {
		return "", aerr
	}

	var out strings.Builder
	idle := time.NewTimer(producerIdleWindow)
	defer idle.Stop()
	for {
		select {
		case chunk, ok := <-sub.C:
			if !ok {
				return out.String(), nil
			}
			out.Write(chunk.Bytes)
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(producerIdleWindow)
		case <-idle.C:
			return out.String(), nil
		case <-ctx.Done():
			return out.String(), ctx.Err()
		}
	}
}

// RunCorrection drives a correction.Engine session against worker id's
// live session, using verifier to judge each revision. breakers may be
// nil to run unprotected; the registry's store doubles as the
// session's reflection memory (spec.md §4.6's optional extension).
func (r *Registry) RunCorrection(ctx context.Context, id string, verifier correction.Verifier, breakers *breaker.Registry, initialOutput string, taskType types.TaskType, taskCtx types.Context, projectID string) (*correction.Result, *apierr.Error) {
	if _, aerr := r.Get(id); aerr != nil {
		return nil, aerr
	}

	engine := correction.New(verifier, breakers, r.store, r.logger)
	producer := &workerProducer{reg: r, workerID: id}

	result := engine.Run(ctx, producer, initialOutput, taskType, taskCtx, projectID)
	if result == nil {
		return nil, apierr.Internal(fmt.Sprintf("correction session for worker %q produced no result", id))
	}
	return result, nil
}
