package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker is anything that can report on its backing connection.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports the database and any optional dependencies. Only
// the database decides the overall status; caches degrade gracefully.
type HealthHandler struct {
	database HealthChecker
	optional map[string]HealthChecker
}

func NewHealthHandler(database HealthChecker, optional map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{database: database, optional: optional}
}

// Check handles GET /health
//
//	@Summary		Health check
//	@Description	Database health decides the status; optional caches report ok or degraded.
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	object{status=string,database=string}	"Service is healthy"
//	@Failure		503	{object}	object{status=string,database=string}	"Service is unhealthy"
//	@Router			/health [get]
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "healthy", "database": "connected"}
	if err := h.database.Health(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["database"] = "disconnected"
	}

	for name, checker := range h.optional {
		if checker == nil {
			continue
		}
		if err := checker.Health(ctx); err != nil {
			body[name] = "degraded"
		} else {
			body[name] = "ok"
		}
	}

	c.JSON(status, body)
}
