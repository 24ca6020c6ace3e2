package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-authgate/meshgate/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Messages shown to callers. Anything not listed here is logged and hidden.
const (
	msgInvalidToken     = "invalid or expired token"
	msgEnrollmentFailed = "enrollment failed"
	msgForbidden        = "forbidden"
	msgDeviceNotFound   = "device not found"
	msgUserNotFound     = "user not found"
	msgDeviceRevoked    = "device has been revoked"
)

// respondError maps a service error to a status code and a message that is
// safe to show. Token lookup failures collapse into one message so callers
// cannot tell an unknown token from a used or expired one.
func respondError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("op", op), zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.String("op", op), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, publicMessage(err, services.ErrValidation)
	case errors.Is(err, services.ErrTokenNotFound), errors.Is(err, services.ErrTokenExpired):
		return http.StatusNotFound, msgInvalidToken
	case errors.Is(err, services.ErrNoAuthKey):
		return http.StatusBadRequest, noKeyMessage(err)
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, msgForbidden
	case errors.Is(err, services.ErrDeviceNotFound):
		return http.StatusNotFound, msgDeviceNotFound
	case errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound, msgUserNotFound
	case errors.Is(err, services.ErrDeviceRevoked):
		return http.StatusConflict, msgDeviceRevoked
	default:
		return http.StatusInternalServerError, msgEnrollmentFailed
	}
}

// publicMessage strips the sentinel prefix, leaving the caller-facing detail.
func publicMessage(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}

// noKeyMessage keeps the administrator hint but never the upstream cause
// that may be joined onto the error.
func noKeyMessage(err error) string {
	first, _, _ := strings.Cut(err.Error(), "\n")
	return first
}
