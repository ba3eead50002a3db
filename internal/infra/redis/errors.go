package redis

import "errors"

// Redis-specific errors.
var (
	// ErrKeyNotFound is returned when a key does not exist.
	ErrKeyNotFound = errors.New("redis: key not found")

	// ErrCacheMiss is returned when a cached item is not found.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrSessionNotFound is returned when a session does not exist or expired.
	ErrSessionNotFound = errors.New("session: not found")
)
