package token

import (
	"context"
	"testing"
	"time"

	"github.com/go-authgate/meshgate/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider() *LocalTokenProvider {
	return NewLocalTokenProvider(&config.Config{
		JWTSecret:     "test-secret-key-for-jwt-signing",
		JWTExpiration: time.Hour,
		BaseURL:       "http://localhost:8080",
	})
}

func TestLocalTokenProvider_GenerateToken(t *testing.T) {
	provider := newTestProvider()

	result, err := provider.GenerateToken(context.Background(), "user123", "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, result.TokenString)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), result.ExpiresAt, 5*time.Second)
	assert.Equal(t, "user123", result.Claims["user_id"])
	assert.Equal(t, "admin", result.Claims["role"])
}

func TestLocalTokenProvider_GenerateToken_EmptyUser(t *testing.T) {
	_, err := newTestProvider().GenerateToken(context.Background(), "", "user")
	assert.ErrorIs(t, err, ErrTokenGeneration)
}

func TestLocalTokenProvider_ValidateToken_Success(t *testing.T) {
	provider := newTestProvider()

	gen, err := provider.GenerateToken(context.Background(), "user123", "support")
	require.NoError(t, err)

	val, err := provider.ValidateToken(context.Background(), gen.TokenString)
	require.NoError(t, err)
	assert.Equal(t, "user123", val.UserID)
	assert.Equal(t, "support", val.Role)
	assert.WithinDuration(t, gen.ExpiresAt, val.ExpiresAt, time.Second)
}

func TestLocalTokenProvider_ValidateToken_Expired(t *testing.T) {
	provider := newTestProvider()
	provider.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	gen, err := provider.GenerateToken(context.Background(), "user123", "user")
	require.NoError(t, err)

	provider.now = time.Now
	_, err = provider.ValidateToken(context.Background(), gen.TokenString)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestLocalTokenProvider_ValidateToken_WrongSecret(t *testing.T) {
	gen, err := newTestProvider().GenerateToken(context.Background(), "user123", "user")
	require.NoError(t, err)

	other := NewLocalTokenProvider(&config.Config{
		JWTSecret:     "a-different-secret",
		JWTExpiration: time.Hour,
		BaseURL:       "http://localhost:8080",
	})
	_, err = other.ValidateToken(context.Background(), gen.TokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLocalTokenProvider_ValidateToken_WrongIssuer(t *testing.T) {
	gen, err := newTestProvider().GenerateToken(context.Background(), "user123", "user")
	require.NoError(t, err)

	other := NewLocalTokenProvider(&config.Config{
		JWTSecret:     "test-secret-key-for-jwt-signing",
		JWTExpiration: time.Hour,
		BaseURL:       "https://elsewhere.example.com",
	})
	_, err = other.ValidateToken(context.Background(), gen.TokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLocalTokenProvider_ValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	claims := jwt.MapClaims{
		"user_id": "user123",
		"type":    "access",
		"iss":     "http://localhost:8080",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestProvider().ValidateToken(context.Background(), unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLocalTokenProvider_ValidateToken_Malformed(t *testing.T) {
	_, err := newTestProvider().ValidateToken(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLocalTokenProvider_Name(t *testing.T) {
	assert.Equal(t, "local", newTestProvider().Name())
}
