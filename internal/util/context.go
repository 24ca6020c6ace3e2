package util

import (
	"context"

	"github.com/go-authgate/meshgate/internal/models"

	"github.com/gin-gonic/gin"
)

// GetIPFromContext extracts the client IP address from the context.
// A *gin.Context answers directly; plain contexts use the value set by
// the IP middleware.
func GetIPFromContext(ctx context.Context) string {
	if ginCtx, ok := ctx.(*gin.Context); ok {
		return ginCtx.ClientIP()
	}
	return models.ClientIPFromContext(ctx)
}

// GetUserFromContext returns the authenticated user, or nil.
func GetUserFromContext(ctx context.Context) *models.User {
	if ginCtx, ok := ctx.(*gin.Context); ok {
		if v, exists := ginCtx.Get("user"); exists {
			if user, ok := v.(*models.User); ok {
				return user
			}
		}
	}
	user, _ := models.UserFromContext(ctx)
	return user
}

// GetUsernameFromContext extracts the username of the authenticated user.
func GetUsernameFromContext(ctx context.Context) string {
	if user := GetUserFromContext(ctx); user != nil {
		return user.Username
	}
	return ""
}
