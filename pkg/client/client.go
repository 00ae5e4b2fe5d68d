package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/drewrad8/strategos/pkg/types"
)

const defaultTimeout = 10 * time.Second

// Client is a small REST client for strategosd's pkg/api surface.
type Client struct {
	addr   string
	apiKey string
	http   *http.Client
}

// NewClient builds a Client targeting addr (e.g. "http://localhost:8080").
// apiKey, if non-empty, is sent as a Bearer token on every request.
func NewClient(addr, apiKey string) *Client {
	return &Client{
		addr:   addr,
		apiKey: apiKey,
		http:   &http.Client{Timeout: defaultTimeout},
	}
}

// wireError mirrors pkg/api's errors.errorBody wire shape.
type wireError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	RetryMs int64  `json:"retryMs,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.addr+path, reqBody)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error wireError `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		return fmt.Errorf("client: %s %s: %s: %s", method, path, envelope.Error.Kind, envelope.Error.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SpawnWorker calls POST /workers.
func (c *Client) SpawnWorker(ctx context.Context, req SpawnRequest) (*types.PublicWorker, error) {
	var w types.PublicWorker
	if err := c.do(ctx, http.MethodPost, "/workers", req, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// SpawnRequest is the POST /workers body (spec.md §6).
type SpawnRequest struct {
	ProjectPath    string      `json:"projectPath"`
	Label          string      `json:"label,omitempty"`
	AutoAccept     *bool       `json:"autoAccept,omitempty"`
	RalphMode      bool        `json:"ralphMode,omitempty"`
	AllowDuplicate bool        `json:"allowDuplicate,omitempty"`
	DependsOn      []string    `json:"dependsOn,omitempty"`
	ParentWorkerID string      `json:"parentWorkerId,omitempty"`
	Task           *types.Task `json:"task,omitempty"`
	InitialInput   string      `json:"initialInput,omitempty"`
}

// ListWorkers calls GET /workers.
func (c *Client) ListWorkers(ctx context.Context) ([]*types.PublicWorker, error) {
	var workers []*types.PublicWorker
	if err := c.do(ctx, http.MethodGet, "/workers", nil, &workers); err != nil {
		return nil, err
	}
	return workers, nil
}

// GetWorker calls GET /workers/:id.
func (c *Client) GetWorker(ctx context.Context, id string) (*types.PublicWorker, error) {
	var w types.PublicWorker
	if err := c.do(ctx, http.MethodGet, "/workers/"+id, nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// KillWorker calls DELETE /workers/:id, with ?force=true when force is set.
func (c *Client) KillWorker(ctx context.Context, id string, force bool) error {
	path := "/workers/" + id
	if force {
		path += "?force=true"
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// SendInput calls POST /workers/:id/input.
func (c *Client) SendInput(ctx context.Context, id, input string) error {
	return c.do(ctx, http.MethodPost, "/workers/"+id+"/input", map[string]string{"input": input}, nil)
}

// Output calls GET /workers/:id/output.
func (c *Client) Output(ctx context.Context, id string) (string, error) {
	var out struct {
		Output string `json:"output"`
	}
	if err := c.do(ctx, http.MethodGet, "/workers/"+id+"/output", nil, &out); err != nil {
		return "", err
	}
	return out.Output, nil
}

// Complete calls POST /workers/:id/complete.
func (c *Client) Complete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/workers/"+id+"/complete", nil, nil)
}

// Dismiss calls POST /workers/:id/dismiss.
func (c *Client) Dismiss(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/workers/"+id+"/dismiss", nil, nil)
}

// Checkpoints calls GET /checkpoints.
func (c *Client) Checkpoints(ctx context.Context) ([]*types.Checkpoint, error) {
	var cps []*types.Checkpoint
	if err := c.do(ctx, http.MethodGet, "/checkpoints", nil, &cps); err != nil {
		return nil, err
	}
	return cps, nil
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CorrectionRequest is the POST /workers/:id/correction body.
type CorrectionRequest struct {
	InitialOutput string        `json:"initialOutput"`
	TaskType      types.TaskType `json:"taskType"`
	ProjectID     string        `json:"projectId,omitempty"`
	Context       types.Context `json:"context,omitempty"`
	VerifyCommand string        `json:"verifyCommand"`
	VerifyArgs    []string      `json:"verifyArgs,omitempty"`
}

// CorrectionResult mirrors pkg/correction.Result's wire shape.
type CorrectionResult struct {
	Success         bool     `json:"Success"`
	FinalOutput     string   `json:"FinalOutput"`
	Iterations      int      `json:"Iterations"`
	StopReason      string   `json:"StopReason"`
	Confidence      float64  `json:"Confidence"`
	RemainingIssues []any    `json:"RemainingIssues"`
}

// RunCorrection calls POST /workers/:id/correction, driving a
// correction loop session against the worker's live output.
func (c *Client) RunCorrection(ctx context.Context, id string, req CorrectionRequest) (*CorrectionResult, error) {
	var result CorrectionResult
	if err := c.do(ctx, http.MethodPost, "/workers/"+id+"/correction", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
