package middleware

import (
	"github.com/go-authgate/meshgate/internal/util"

	"github.com/gin-gonic/gin"
)

// MetricsAuthMiddleware protects the metrics endpoint with a static bearer
// token. An empty token leaves the endpoint open.
func MetricsAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			c.Next()
			return
		}

		provided := bearerToken(c)
		if provided == "" {
			unauthorized(c, "bearer token required")
			return
		}
		if !util.ConstantTimeEqual(provided, expected) {
			unauthorized(c, "invalid token")
			return
		}

		c.Next()
	}
}
