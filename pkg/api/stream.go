package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/drewrad8/strategos/pkg/apierr"
	"github.com/drewrad8/strategos/pkg/events"
	"github.com/drewrad8/strategos/pkg/registry"
	"github.com/drewrad8/strategos/pkg/ringbuf"
)

// StreamHandler implements spec.md §6's streaming surface: a single
// long-lived Server-Sent Events connection fanning out every
// pkg/events.Event, optionally scoped to one worker and resumable by
// output seq. Grounded on yungbote-neurobridge-backend's
// SSEHub.ServeHTTP heartbeat+flush loop (internal/sse/hub.go),
// generalized from a channel-subscription hub to a direct
// events.Broker/ringbuf.Ring subscription since strategos has no
// per-user channel model.
type StreamHandler struct {
	reg *registry.Registry
}

func NewStreamHandler(reg *registry.Registry) *StreamHandler {
	return &StreamHandler{reg: reg}
}

// sseEnvelope is the JSON payload of every `data:` line.
type sseEnvelope struct {
	Type      events.Type `json:"type"`
	WorkerID  string      `json:"workerId,omitempty"`
	Seq       uint64      `json:"seq,omitempty"`
	Output    string      `json:"output,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data,omitempty"`
}

const heartbeatInterval = 15 * time.Second

// Stream handles GET /events?worker=<id>&sinceSeq=<n>. sinceSeq is the
// client's last-seen output seq for worker, per spec.md §6, so output
// resumes without gaps across a reconnect.
func (h *StreamHandler) Stream(c *gin.Context) {
	workerID := c.Query("worker")
	sinceSeq, _ := strconv.ParseUint(c.DefaultQuery("sinceSeq", "0"), 10, 64)

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		abortWithError(c, apierr.Internal("streaming unsupported"))
		return
	}

	var outSub *ringbuf.Subscription
	if workerID != "" {
		sub, aerr := h.reg.SubscribeOutput(workerID, sinceSeq)
		if aerr != nil {
			abortWithError(c, aerr)
			return
		}
		outSub = sub
		defer h.reg.UnsubscribeOutput(workerID, outSub)
	}

	filter := events.Filter(nil)
	if workerID != "" {
		filter = func(e events.Event) bool {
			// Output events for the scoped worker are delivered via the
			// ring subscription above (which replays backlog); skip them
			// here to avoid double delivery.
			if e.Type == events.WorkerOutput && e.WorkerID == workerID {
				return false
			}
			return e.WorkerID == "" || e.WorkerID == workerID
		}
	}
	broker := h.reg.Events()
	evSub := broker.Subscribe(filter)
	defer broker.Unsubscribe(evSub)

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	var outCh <-chan ringbuf.Chunk
	if outSub != nil {
		outCh = outSub.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case e, okCh := <-evSub.C:
			if !okCh {
				return
			}
			writeSSE(w, sseEnvelope{
				Type: e.Type, WorkerID: e.WorkerID, Seq: e.Seq,
				Timestamp: e.Timestamp, Data: e.Data,
			})
			flusher.Flush()
		case chunk, okCh := <-outCh:
			if !okCh {
				outCh = nil
				continue
			}
			writeSSE(w, sseEnvelope{
				Type: events.WorkerOutput, WorkerID: workerID, Seq: chunk.Seq,
				Output: string(chunk.Bytes), Timestamp: chunk.At,
			})
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, env sseEnvelope) {
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now()
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Type, payload)
}
