package api

import (
	"context"
	"net/http"

	"chat-relay/backend/pkg/health"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports the aggregated reachability of the relay's dependencies
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// HealthHandler serves the health endpoints
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler creates a health handler
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health answers 200 when every dependency is up and 503 otherwise.
// The body has the same shape in both cases.
func (h *HealthHandler) Health(c *gin.Context) {
	report := h.checker.Check(c.Request.Context())

	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// RegisterRoutes mounts the health endpoint on both paths clients use
func (h *HealthHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", h.Health)
	router.GET("/api/health", h.Health)
}
