package core

import (
	"context"
	"time"
)

// TokenResult is the outcome of a token generation call.
type TokenResult struct {
	TokenString string
	TokenType   string
	ExpiresAt   time.Time
	Claims      map[string]any
}

// TokenValidationResult is the outcome of a token validation call.
type TokenValidationResult struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
	Claims    map[string]any
}

// TokenProvider issues and validates API bearer tokens.
type TokenProvider interface {
	GenerateToken(ctx context.Context, userID, role string) (*TokenResult, error)
	ValidateToken(ctx context.Context, tokenString string) (*TokenValidationResult, error)
	Name() string
}
