package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/stores"
)

// Policy bounds the number of attempts per key inside a window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed    bool
	Count      int64
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a fixed-window limiter backed by a shared keyed store.
type Limiter struct {
	store  stores.Keyed
	prefix string
}

// New creates a [Limiter]. Keys are namespaced under prefix.
func New(store stores.Keyed, prefix string) *Limiter {
	return &Limiter{store: store, prefix: prefix}
}

func (l *Limiter) key(k string) string {
	return l.prefix + ":" + k
}

// Check reports whether another attempt on key is allowed, without recording one.
func (l *Limiter) Check(ctx context.Context, key string, p Policy) (Decision, error) {
	c, err := l.store.Peek(ctx, l.key(key))
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decide(c, p), nil
}

// RecordAttempt counts one attempt on key and returns the resulting decision
// for the next attempt.
func (l *Limiter) RecordAttempt(ctx context.Context, key string, p Policy) (Decision, error) {
	c, err := l.store.Incr(ctx, l.key(key), p.Window)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decide(c, p), nil
}

// Allow records an attempt and reports whether that attempt fits the budget.
// It is the atomic increment-and-check used where every attempt counts.
func (l *Limiter) Allow(ctx context.Context, key string, p Policy) (Decision, error) {
	c, err := l.store.Incr(ctx, l.key(key), p.Window)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	d := Decision{
		Allowed:   c.Count <= int64(p.Limit),
		Count:     c.Count,
		Remaining: remaining(c.Count, p.Limit),
	}
	if !d.Allowed {
		d.RetryAfter = c.TTL
	}
	return d, nil
}

// Refund gives back one attempt recorded by [Limiter.Allow] or
// [Limiter.RecordAttempt]. The window is not extended.
func (l *Limiter) Refund(ctx context.Context, key string) error {
	if _, err := l.store.Decr(ctx, l.key(key)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Reset clears the counter for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.store.Delete(ctx, l.key(key)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func decide(c stores.Counter, p Policy) Decision {
	d := Decision{
		Allowed:   c.Count < int64(p.Limit),
		Count:     c.Count,
		Remaining: remaining(c.Count, p.Limit),
	}
	if !d.Allowed {
		d.RetryAfter = c.TTL
	}
	return d
}

func remaining(count int64, limit int) int {
	left := int64(limit) - count
	if left < 0 {
		return 0
	}
	return int(left)
}
