package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/drewrad8/strategos/pkg/apierr"
	"github.com/drewrad8/strategos/pkg/breaker"
	"github.com/drewrad8/strategos/pkg/correction"
	"github.com/drewrad8/strategos/pkg/registry"
	"github.com/drewrad8/strategos/pkg/types"
)

// WorkerHandler implements spec.md §6's worker CRUD and relation
// routes against a *registry.Registry.
type WorkerHandler struct {
	reg      *registry.Registry
	breakers *breaker.Registry
}

func NewWorkerHandler(reg *registry.Registry, breakers *breaker.Registry) *WorkerHandler {
	return &WorkerHandler{reg: reg, breakers: breakers}
}

// spawnRequest is the POST /workers body.
type spawnRequest struct {
	ProjectPath    string       `json:"projectPath"`
	Label          string       `json:"label"`
	AutoAccept     *bool        `json:"autoAccept"`
	RalphMode      bool         `json:"ralphMode"`
	AllowDuplicate bool         `json:"allowDuplicate"`
	DependsOn      []string     `json:"dependsOn"`
	ParentWorkerID string       `json:"parentWorkerId"`
	Task           *types.Task  `json:"task"`
	InitialInput   string       `json:"initialInput"`
}

func (h *WorkerHandler) Spawn(c *gin.Context) {
	var req spawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "malformed request body")
		return
	}

	autoAccept := true
	if req.AutoAccept != nil {
		autoAccept = *req.AutoAccept
	}

	w, aerr := h.reg.Spawn(registry.SpawnSpec{
		Project:        req.ProjectPath,
		Label:          req.Label,
		AutoAccept:     autoAccept,
		RalphMode:      req.RalphMode,
		AllowDuplicate: req.AllowDuplicate,
		DependsOn:      req.DependsOn,
		ParentWorkerID: req.ParentWorkerID,
		Task:           req.Task,
		InitialInput:   []byte(req.InitialInput),
	})
	if aerr != nil {
		abortWithError(c, aerr)
		return
	}
	c.JSON(http.StatusCreated, w.ToPublic())
}

func (h *WorkerHandler) List(c *gin.Context) {
	workers := h.reg.List()
	out := make([]*types.PublicWorker, 0, len(workers))
	for _, w := range workers {
		out = append(out, w.ToPublic())
	}
	jsonOK(c, out)
}

func (h *WorkerHandler) Get(c *gin.Context) {
	w, aerr := h.reg.Get(c.Param("id"))
	if aerr != nil {
		abortWithError(c, aerr)
		return
	}
	jsonOK(c, w.ToPublic())
}

type patchRequest struct {
	Label string `json:"label"`
}

func (h *WorkerHandler) Patch(c *gin.Context) {
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "label", "malformed request body")
		return
	}
	w, aerr := h.reg.Patch(c.Param("id"), req.Label)
	if aerr != nil {
		abortWithError(c, aerr)
		return
	}
	jsonOK(c, w.ToPublic())
}

func (h *WorkerHandler) Kill(c *gin.Context) {
	force := c.Query("force") == "true"
	if _, aerr := h.reg.Kill(c.Param("id"), force); aerr != nil {
		abortWithError(c, aerr)
		return
	}
	jsonOK(c, gin.H{"success": true})
}

type sendInputRequest struct {
	Input string `json:"input"`
}

func (h *WorkerHandler) SendInput(c *gin.Context) {
	var req sendInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "input", "malformed request body")
		return
	}
	if req.Input == "" {
		badRequest(c, "input", "must not be empty")
		return
	}
	if aerr := h.reg.SendInput(c.Param("id"), []byte(req.Input)); aerr != nil {
		abortWithError(c, aerr)
		return
	}
	jsonOK(c, gin.H{"success": true})
}

type settingsRequest struct {
	AutoAccept       *bool `json:"autoAccept"`
	AutoAcceptPaused *bool `json:"autoAcceptPaused"`
}

func (h *WorkerHandler) Settings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "settings", "malformed request body")
		return
	}
	if req.AutoAccept == nil && req.AutoAcceptPaused == nil {
		badRequest(c, "settings", "must set at least one of autoAccept, autoAcceptPaused")
		return
	}
	w, aerr := h.reg.Settings(c.Param("id"), req.AutoAccept, req.AutoAcceptPaused)
	if aerr != nil {
		abortWithError(c, aerr)
		return
	}
	jsonOK(c, w.ToPublic())
}

func (h *WorkerHandler) Complete(c *gin.Context) {
	w, aerr := h.reg.Complete(c.Param("id"))
	if aerr != nil {
		abortWithError(c, aerr)
		return
	}
	jsonOK(c, gin.H{"success": true, "worker": w.ToPublic()})
}

func (h *WorkerHandler) Dismiss(c *gin.Context) {
	if _, aerr := h.reg.Dismiss(c.Param("id")); aerr != nil {
		abortWithError(c, aerr)
		return
	}
	jsonOK(c, gin.H{"success": true})
}

func (h *WorkerHandler) Output(c *gin.Context) {
	out, aerr := h.reg.Output(c.Param("id"))
	if aerr != nil {
		abortWithError(c, aerr)
		return
	}
	jsonOK(c, gin.H{"output": string(out)})
}

func (h *WorkerHandler) History(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, aerr := h.reg.History(c.Param("id"), offset, limit)
	if aerr != nil {
		abortWithError(c, aerr)
		return
	}
	jsonOK(c, entries)
}

func (h *WorkerHandler) Children(c *gin.Context) {
	h.relations(c, h.reg.Children)
}

func (h *WorkerHandler) Siblings(c *gin.Context) {
	h.relations(c, h.reg.Siblings)
}

func (h *WorkerHandler) Dependencies(c *gin.Context) {
	h.relations(c, h.reg.Dependencies)
}

func (h *WorkerHandler) relations(c *gin.Context, fn func(string) ([]*types.Worker, *apierr.Error)) {
	workers, aerr := fn(c.Param("id"))
	if aerr != nil {
		abortWithError(c, aerr)
		return
	}
	out := make([]*types.PublicWorker, 0, len(workers))
	for _, w := range workers {
		out = append(out, w.ToPublic())
	}
	jsonOK(c, out)
}

func (h *WorkerHandler) Templates(c *gin.Context) {
	jsonOK(c, registry.ListTemplates())
}

type spawnFromTemplateRequest struct {
	Template    string      `json:"template"`
	Label       string      `json:"label"`
	ProjectPath string      `json:"projectPath"`
	Task        *types.Task `json:"task"`
}

func (h *WorkerHandler) SpawnFromTemplate(c *gin.Context) {
	var req spawnFromTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "malformed request body")
		return
	}
	w, aerr := h.reg.SpawnFromTemplate(req.Template, req.ProjectPath, req.Label, req.Task)
	if aerr != nil {
		abortWithError(c, aerr)
		return
	}
	c.JSON(http.StatusCreated, w.ToPublic())
}

// correctionRequest is the POST /workers/:id/correction body: drives a
// correction loop session (spec.md §4.6) against the worker's live
// session, using an external verification command as the judge.
type correctionRequest struct {
	InitialOutput string        `json:"initialOutput"`
	TaskType      types.TaskType `json:"taskType"`
	ProjectID     string        `json:"projectId"`
	Context       types.Context `json:"context"`
	VerifyCommand string        `json:"verifyCommand"`
	VerifyArgs    []string      `json:"verifyArgs"`
}

func (h *WorkerHandler) Correct(c *gin.Context) {
	var req correctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "malformed request body")
		return
	}
	if req.VerifyCommand == "" {
		badRequest(c, "verifyCommand", "required")
		return
	}

	verifier := &correction.ExecVerifier{Command: req.VerifyCommand, Args: req.VerifyArgs}
	result, aerr := h.reg.RunCorrection(c.Request.Context(), c.Param("id"), verifier, h.breakers, req.InitialOutput, req.TaskType, req.Context, req.ProjectID)
	if aerr != nil {
		abortWithError(c, aerr)
		return
	}
	jsonOK(c, result)
}
