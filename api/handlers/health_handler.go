package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/tunepack-go/internal/app"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	orchestrator *app.Orchestrator
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(orchestrator *app.Orchestrator) *HealthHandler {
	return &HealthHandler{
		orchestrator: orchestrator,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string          `json:"status"`
	Version string          `json:"version"`
	Batch   app.BatchStatus `json:"batch"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
		Batch:   h.orchestrator.Status(),
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
