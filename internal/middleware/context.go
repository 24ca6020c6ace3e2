package middleware

import (
	"github.com/go-authgate/meshgate/internal/models"

	"github.com/gin-gonic/gin"
)

// IPMiddleware extracts client IP and stores it in the context
func IPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Gin's ClientIP() handles X-Forwarded-For and other headers
		ip := c.ClientIP()
		c.Set("client_ip", ip)
		c.Request = c.Request.WithContext(models.WithClientIP(c.Request.Context(), ip))
		c.Next()
	}
}
