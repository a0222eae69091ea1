package rate

import "errors"

var (
	// ErrRateLimited is returned once a key has used up its window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps every Redis command failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
