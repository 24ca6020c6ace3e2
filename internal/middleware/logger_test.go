package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger_LevelByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{"ok", http.StatusOK, zapcore.InfoLevel},
		{"not found", http.StatusNotFound, zapcore.WarnLevel},
		{"server error", http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observed, logs := observer.New(zapcore.DebugLevel)

			r := gin.New()
			r.Use(RequestLogger(zap.New(observed)))
			r.GET("/devices/:id", func(c *gin.Context) {
				c.Status(tt.status)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/devices/abc", nil))
			require.Equal(t, tt.status, w.Code)

			entries := logs.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
			assert.Equal(t, "http", entries[0].LoggerName)

			fields := entries[0].ContextMap()
			assert.Equal(t, "/devices/:id", fields["path"])
			assert.Equal(t, int64(tt.status), fields["status"])
			assert.NotContains(t, fields, "user_id")
		})
	}
}
