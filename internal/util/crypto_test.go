package util

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCryptoRandomBytes(t *testing.T) {
	t.Run("Generate correct length", func(t *testing.T) {
		bytes, err := CryptoRandomBytes(20)
		require.NoError(t, err)
		assert.Len(t, bytes, 20)
	})

	t.Run("Generate unique values", func(t *testing.T) {
		bytes1, err := CryptoRandomBytes(20)
		require.NoError(t, err)

		bytes2, err := CryptoRandomBytes(20)
		require.NoError(t, err)

		assert.NotEqual(t, bytes1, bytes2, "Random bytes should not be identical")
	})
}

func TestRandomToken(t *testing.T) {
	tok, err := RandomToken(32)
	require.NoError(t, err)
	assert.Len(t, tok, 43) // 32 bytes, unpadded base64

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	seen := map[string]bool{}
	for range 100 {
		tok, err := RandomToken(32)
		require.NoError(t, err)
		assert.False(t, seen[tok], "token repeated")
		seen[tok] = true
	}
}

func TestHashToken(t *testing.T) {
	t.Run("Same input produces same hash", func(t *testing.T) {
		hash1 := HashToken("enrollment-token", "pepper")
		hash2 := HashToken("enrollment-token", "pepper")

		assert.Equal(t, hash1, hash2)
		assert.Len(t, hash1, 100) // 50 bytes = 100 hex chars
	})

	t.Run("Different salt produces different hash", func(t *testing.T) {
		assert.NotEqual(t, HashToken("tok", "salt1"), HashToken("tok", "salt2"))
	})

	t.Run("Different token produces different hash", func(t *testing.T) {
		assert.NotEqual(t, HashToken("tok-1", "salt"), HashToken("tok-2", "salt"))
	})
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, ConstantTimeEqual("secret", "secret"))
	assert.False(t, ConstantTimeEqual("secret", "secreT"))
	assert.False(t, ConstantTimeEqual("secret", ""))
}
