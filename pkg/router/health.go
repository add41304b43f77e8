package router

import "chat-relay/backend/internal/api"

// setupHealthRoutes registers /health and /api/health
func (r *Router) setupHealthRoutes() {
	if r.deps.Health == nil {
		r.Logger.Warn("No health checker configured, health routes disabled")
		return
	}
	api.NewHealthHandler(r.deps.Health).RegisterRoutes(r.Engine)
}
