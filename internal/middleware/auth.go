package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/go-authgate/meshgate/internal/core"
	"github.com/go-authgate/meshgate/internal/models"
	"github.com/go-authgate/meshgate/internal/services"
	"github.com/go-authgate/meshgate/internal/token"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set on the gin context by the auth middleware.
const (
	ContextUserID = "user_id"
	ContextUser   = "user"
)

const bearerPrefix = "Bearer "

// bearerToken returns the token from "Authorization: Bearer <token>", or "".
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}

func unauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="meshgate"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

// Authenticator resolves bearer tokens to user profiles.
type Authenticator struct {
	tokens core.TokenProvider
	users  *services.UserService
	logger *zap.Logger
}

func NewAuthenticator(tokens core.TokenProvider, users *services.UserService, logger *zap.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, logger: logger.Named("auth")}
}

// authenticate returns the user behind the request's bearer token. A missing
// header yields (nil, nil).
func (a *Authenticator) authenticate(c *gin.Context) (*models.User, error) {
	raw := bearerToken(c)
	if raw == "" {
		return nil, nil //nolint:nilnil // anonymous request
	}

	claims, err := a.tokens.ValidateToken(c.Request.Context(), raw)
	if err != nil {
		return nil, err
	}
	return a.users.GetUserByID(c.Request.Context(), claims.UserID)
}

func setUser(c *gin.Context, user *models.User) {
	c.Set(ContextUserID, user.ID)
	c.Set(ContextUser, user)
	c.Request = c.Request.WithContext(models.WithUser(c.Request.Context(), user))
}

// RequireAuth rejects requests without a valid bearer token for a known user.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := a.authenticate(c)
		switch {
		case errors.Is(err, token.ErrExpiredToken):
			unauthorized(c, "token expired")
			return
		case errors.Is(err, services.ErrUserNotFound), errors.Is(err, token.ErrInvalidToken):
			unauthorized(c, "invalid token")
			return
		case err != nil:
			a.logger.Error("failed to authenticate request", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
			return
		case user == nil:
			unauthorized(c, "authentication required")
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is presented and lets
// anonymous requests through. Invalid tokens are treated as anonymous; the
// handler decides whether the action needs a user.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := a.authenticate(c)
		if err != nil {
			a.logger.Debug("ignoring invalid bearer token", zap.Error(err))
		}
		if user != nil {
			setUser(c, user)
		}
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			unauthorized(c, "authentication required")
			return
		}
		if !slices.Contains(roles, user.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
