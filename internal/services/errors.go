package services

import "errors"

var (
	// ErrValidation is returned when a request fails field validation.
	// The wrapped message is safe to show to the caller.
	ErrValidation = errors.New("validation failed")

	// ErrTokenNotFound covers unknown, consumed and malformed enrollment tokens.
	ErrTokenNotFound = errors.New("enrollment token not found")
	ErrTokenExpired  = errors.New("enrollment token expired")

	// ErrNoAuthKey means no pre-authorization key could be resolved for the
	// tenant. It is a configuration problem, not a caller mistake.
	ErrNoAuthKey = errors.New("no pre-authorization key configured")

	ErrPersistence    = errors.New("persistence failure")
	ErrForbidden      = errors.New("forbidden")
	ErrUserNotFound   = errors.New("user not found")
	ErrDeviceNotFound = errors.New("device not found")
	ErrDeviceRevoked  = errors.New("device revoked")
)
