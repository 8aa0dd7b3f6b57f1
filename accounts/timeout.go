package accounts

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/permission"
)

// WithTimeout returns a Store that bounds every call to inner by d.
func WithTimeout(inner Store, d time.Duration) Store {
	if d <= 0 {
		return inner
	}
	return &timeoutStore{inner: inner, d: d}
}

type timeoutStore struct {
	inner Store
	d     time.Duration
}

func (t *timeoutStore) Create(ctx context.Context, a *Account) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.Create(ctx, a)
}

func (t *timeoutStore) ByID(ctx context.Context, id string) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.ByID(ctx, id)
}

func (t *timeoutStore) ByEmail(ctx context.Context, email string) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.ByEmail(ctx, email)
}

func (t *timeoutStore) RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil time.Time) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.RecordFailedLogin(ctx, id, threshold, lockUntil)
}

func (t *timeoutStore) ResetFailedLogins(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.ResetFailedLogins(ctx, id)
}

func (t *timeoutStore) UpdatePasswordHash(ctx context.Context, id, hash string, changedAt *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.UpdatePasswordHash(ctx, id, hash, changedAt)
}

func (t *timeoutStore) MarkVerified(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.MarkVerified(ctx, id)
}

func (t *timeoutStore) SetRole(ctx context.Context, id string, role permission.Role) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.SetRole(ctx, id, role)
}

func (t *timeoutStore) SetActive(ctx context.Context, id string, active bool) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.SetActive(ctx, id, active)
}

func (t *timeoutStore) SetTOTP(ctx context.Context, id, secret string, enabled bool) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.SetTOTP(ctx, id, secret, enabled)
}

func (t *timeoutStore) AdvanceTOTPCounter(ctx context.Context, id string, counter int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.AdvanceTOTPCounter(ctx, id, counter)
}

func (t *timeoutStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.Delete(ctx, id)
}

func (t *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.Ping(ctx)
}
