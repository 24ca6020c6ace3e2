package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-authgate/meshgate/internal/config"
	"github.com/go-authgate/meshgate/internal/core"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeBearer is the only token type this provider issues.
const TokenTypeBearer = "Bearer"

var (
	ErrTokenGeneration = errors.New("failed to generate token")
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("token expired")
)

var _ core.TokenProvider = (*LocalTokenProvider)(nil)

// LocalTokenProvider generates and validates HS256 API bearer tokens locally
type LocalTokenProvider struct {
	secret     []byte
	issuer     string
	expiration time.Duration
	now        func() time.Time
}

// NewLocalTokenProvider creates a new local token provider
func NewLocalTokenProvider(cfg *config.Config) *LocalTokenProvider {
	return &LocalTokenProvider{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.BaseURL,
		expiration: cfg.JWTExpiration,
		now:        time.Now,
	}
}

// GenerateToken signs a bearer token for userID carrying role.
func (p *LocalTokenProvider) GenerateToken(
	_ context.Context,
	userID, role string,
) (*core.TokenResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrTokenGeneration)
	}

	now := p.now()
	expiresAt := now.Add(p.expiration)
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"type":    "access",
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
		"iss":     p.issuer,
		"sub":     userID,
		"jti":     uuid.New().String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	return &core.TokenResult{
		TokenString: signed,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   expiresAt,
		Claims:      claims,
	}, nil
}

// ValidateToken verifies signature, expiry and issuer of a bearer token.
func (p *LocalTokenProvider) ValidateToken(
	_ context.Context,
	tokenString string,
) (*core.TokenValidationResult, error) {
	parsed, err := jwt.Parse(tokenString,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return p.secret, nil
		},
		jwt.WithIssuer(p.issuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if tokenType, _ := claims["type"].(string); tokenType != "access" {
		return nil, ErrInvalidToken
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return nil, ErrInvalidToken
	}
	role, _ := claims["role"].(string)

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	return &core.TokenValidationResult{
		UserID:    userID,
		Role:      role,
		ExpiresAt: exp.Time,
		Claims:    claims,
	}, nil
}

// Name returns provider name for logging
func (p *LocalTokenProvider) Name() string {
	return "local"
}
