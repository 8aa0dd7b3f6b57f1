package limiters

import (
	"context"
	"strings"

	"github.com/MrEthical07/authcore/internal/rate"
)

// Throttle applies one atomic budget to keys of a namespace.
type Throttle struct {
	limiter   *rate.Limiter
	namespace string
	policy    rate.Policy
}

// NewThrottle creates a [Throttle] such as ("register", 3 per hour).
func NewThrottle(limiter *rate.Limiter, namespace string, policy rate.Policy) *Throttle {
	return &Throttle{limiter: limiter, namespace: namespace, policy: policy}
}

// Enforce records an attempt for key and reports whether it fits the budget.
// Empty keys are not throttled.
func (t *Throttle) Enforce(ctx context.Context, key string) (rate.Decision, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if t == nil || key == "" {
		return rate.Decision{Allowed: true}, nil
	}
	return t.limiter.Allow(ctx, t.namespace+":"+key, t.policy)
}
