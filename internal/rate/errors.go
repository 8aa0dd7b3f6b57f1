package rate

import "errors"

var (
	// ErrRateLimited is returned by policy helpers when a key is over budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable wraps keyed store failures.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)
