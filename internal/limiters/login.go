package limiters

import (
	"context"
	"strings"

	"github.com/MrEthical07/authcore/internal/rate"
)

// LoginConfig holds the failed-login budgets.
type LoginConfig struct {
	PerIP    rate.Policy
	PerEmail rate.Policy
}

// LoginLimiter budgets login attempts per client IP and per normalized
// email. Attempts that prove the password are given back.
type LoginLimiter struct {
	limiter *rate.Limiter
	config  LoginConfig
}

// NewLoginLimiter creates a [LoginLimiter].
func NewLoginLimiter(limiter *rate.Limiter, cfg LoginConfig) *LoginLimiter {
	return &LoginLimiter{limiter: limiter, config: cfg}
}

func loginIPKey(ip string) string {
	return "login:ip:" + ip
}

func loginEmailKey(email string) string {
	return "login:email:" + strings.ToLower(strings.TrimSpace(email))
}

// Reserve atomically spends one attempt on the IP and email budgets before
// credentials are checked, so a concurrent burst cannot slip past a count
// that has not been written yet. When either budget is exhausted the longer
// retry hint wins.
func (l *LoginLimiter) Reserve(ctx context.Context, ip, email string) (rate.Decision, error) {
	if l == nil {
		return rate.Decision{Allowed: true}, nil
	}

	out := rate.Decision{Allowed: true}
	if ip != "" {
		d, err := l.limiter.Allow(ctx, loginIPKey(ip), l.config.PerIP)
		if err != nil {
			return rate.Decision{}, err
		}
		out = merge(out, d)
	}
	if email != "" {
		d, err := l.limiter.Allow(ctx, loginEmailKey(email), l.config.PerEmail)
		if err != nil {
			return rate.Decision{}, err
		}
		out = merge(out, d)
	}
	return out, nil
}

// Release refunds a reservation for an attempt that proved the password,
// such as a login stopped for a missing second factor.
func (l *LoginLimiter) Release(ctx context.Context, ip, email string) error {
	if l == nil {
		return nil
	}
	if ip != "" {
		if err := l.limiter.Refund(ctx, loginIPKey(ip)); err != nil {
			return err
		}
	}
	if email != "" {
		return l.limiter.Refund(ctx, loginEmailKey(email))
	}
	return nil
}

// Reset settles a successful login: the IP reservation is refunded and the
// email budget cleared. Earlier failures from the IP still count, since that
// budget is shared by every account behind the address.
func (l *LoginLimiter) Reset(ctx context.Context, ip, email string) error {
	if l == nil {
		return nil
	}
	if ip != "" {
		if err := l.limiter.Refund(ctx, loginIPKey(ip)); err != nil {
			return err
		}
	}
	if email != "" {
		return l.limiter.Reset(ctx, loginEmailKey(email))
	}
	return nil
}

func merge(a, b rate.Decision) rate.Decision {
	if b.Allowed {
		return a
	}
	if a.Allowed || b.RetryAfter > a.RetryAfter {
		return b
	}
	return a
}
