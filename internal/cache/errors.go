package cache

import "errors"

// Sentinels shared by every backend. Callers only branch on ErrCacheMiss;
// the other two are wrapped around the backend error for logging.
var (
	ErrCacheMiss        = errors.New("cache: key not found")
	ErrCacheUnavailable = errors.New("cache: backend unavailable")
	ErrInvalidValue     = errors.New("cache: stored value could not be decoded")
)
