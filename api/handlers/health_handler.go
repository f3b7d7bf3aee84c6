package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/ytrelay-go/internal/app"
	"github.com/yourusername/ytrelay-go/internal/domain"
)

// Version is reported by the health endpoint
var Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	orchestrator *app.TaskOrchestrator
	hub          *app.ProgressHub
	checker      domain.ReadinessChecker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(orchestrator *app.TaskOrchestrator, hub *app.ProgressHub, checker domain.ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		orchestrator: orchestrator,
		hub:          hub,
		checker:      checker,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Tasks   struct {
		Active int `json:"active"`
	} `json:"tasks"`
	Subscribers int `json:"subscribers"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:      "ok",
		Version:     Version,
		Subscribers: h.hub.Count(),
	}
	response.Tasks.Active = h.orchestrator.Active()

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.checker.CheckReady(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
