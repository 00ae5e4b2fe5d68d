package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/drewrad8/strategos/pkg/metrics"
)

// HealthHandler implements spec.md §6's GET /health, reporting the
// same component health tracked in pkg/metrics (registry, storage,
// api are registered there at startup).
func HealthHandler(c *gin.Context) {
	health := metrics.GetHealth()

	status := health.Status
	if status == "healthy" {
		status = "ok"
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":     status,
		"version":    health.Version,
		"uptime":     health.Uptime,
		"components": health.Components,
	})
}
