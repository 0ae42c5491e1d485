package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports the latest probe results. It never fails itself.
func (h *Handler) HealthCheck(c *gin.Context) {
	checks := h.Status.Results()

	status := "ok"
	for _, check := range checks {
		if !check.Up {
			status = "degraded"
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"message":   "MindMap is running",
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
		"scheduler": h.Status.GetStatus(),
	})
}
