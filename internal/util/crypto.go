package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// CryptoRandomBytes generates cryptographically secure random bytes
func CryptoRandomBytes(length int64) ([]byte, error) {
	buf := make([]byte, length)
	_, err := rand.Read(buf)
	return buf, err
}

// RandomToken returns n random bytes encoded as unpadded base64url,
// safe for URLs and QR payloads.
func RandomToken(n int) (string, error) {
	buf, err := CryptoRandomBytes(int64(n))
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns PBKDF2 hash of token with salt.
// The same token and salt always yield the same hash, so it can back a
// unique index lookup.
func HashToken(token, salt string) string {
	hash := pbkdf2.Key([]byte(token), []byte(salt), 10000, 50, sha256.New)
	return hex.EncodeToString(hash)
}

// ConstantTimeEqual reports whether a and b are equal without leaking
// their common prefix length through timing.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
