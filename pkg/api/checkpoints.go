package api

import (
	"github.com/gin-gonic/gin"

	"github.com/drewrad8/strategos/pkg/registry"
)

// CheckpointHandler implements spec.md §6's GET /checkpoints.
type CheckpointHandler struct {
	reg *registry.Registry
}

func NewCheckpointHandler(reg *registry.Registry) *CheckpointHandler {
	return &CheckpointHandler{reg: reg}
}

func (h *CheckpointHandler) List(c *gin.Context) {
	cps, aerr := h.reg.Checkpoints()
	if aerr != nil {
		abortWithError(c, aerr)
		return
	}
	jsonOK(c, cps)
}
