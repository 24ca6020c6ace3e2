package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-authgate/meshgate/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestGetIPFromContext(t *testing.T) {
	t.Run("plain context with IP", func(t *testing.T) {
		ctx := models.WithClientIP(context.Background(), "10.0.0.1")
		assert.Equal(t, "10.0.0.1", GetIPFromContext(ctx))
	})

	t.Run("plain context without IP", func(t *testing.T) {
		assert.Empty(t, GetIPFromContext(context.Background()))
	})

	t.Run("gin context", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.RemoteAddr = "192.168.1.7:4242"

		assert.Equal(t, "192.168.1.7", GetIPFromContext(c))
	})
}

func TestGetUsernameFromContext(t *testing.T) {
	user := &models.User{ID: "u1", Username: "alice"}

	t.Run("plain context", func(t *testing.T) {
		ctx := models.WithUser(context.Background(), user)
		assert.Equal(t, "alice", GetUsernameFromContext(ctx))
	})

	t.Run("gin context", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("user", user)
		assert.Equal(t, "alice", GetUsernameFromContext(c))
	})

	t.Run("anonymous", func(t *testing.T) {
		assert.Empty(t, GetUsernameFromContext(context.Background()))
		assert.Nil(t, GetUserFromContext(context.Background()))
	})
}
