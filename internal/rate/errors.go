package rate

import "errors"

var (
	// ErrRateLimited reports an operation over its attempt budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable reports a Redis backend failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
