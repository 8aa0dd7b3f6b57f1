package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
)

// PasswordFailureKind classifies change and reset failures.
type PasswordFailureKind int

const (
	PasswordFailureNone PasswordFailureKind = iota
	PasswordFailureWrongCurrent
	PasswordFailureWeak
	PasswordFailureInvalidToken
	PasswordFailureNotFound
	PasswordFailureRateLimited
	PasswordFailureUnavailable
)

// PasswordResult reports the outcome of a password operation.
type PasswordResult struct {
	Failure    PasswordFailureKind
	Err        error
	RetryAfter time.Duration
	AccountID  string
	// Revoked is the number of sessions ended by the change.
	Revoked int
}

// PasswordDeps captures change, reset request and reset confirm
// dependencies.
type PasswordDeps struct {
	ResetTTL      time.Duration
	LoadAccount   func(ctx context.Context, id string) (*accounts.Account, error)
	LookupAccount func(ctx context.Context, email string) (*accounts.Account, error)
	CheckPassword func(ctx context.Context, a *accounts.Account, password string) (bool, error)
	CheckPolicy   func(password string) error
	SetPassword   func(ctx context.Context, accountID, password string) error
	RevokeAll     func(ctx context.Context, accountID string) (int, error)
	Throttle      func(ctx context.Context, email string) (rate.Decision, error)
	IssueToken    func(ctx context.Context, accountID string, ttl time.Duration) (string, error)
	ConsumeToken  func(ctx context.Context, token string) (string, error)
	SendReset     func(ctx context.Context, a *accounts.Account, token string, expiresAt time.Time) error
	Now           func() time.Time
}

// RunChangePassword replaces the password of accountID after checking the
// current one, then ends every session of the account.
func RunChangePassword(ctx context.Context, accountID, current, next string, deps PasswordDeps) PasswordResult {
	res := PasswordResult{AccountID: accountID}

	a, err := deps.LoadAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return res.fail(PasswordFailureNotFound, err)
		}
		return res.fail(PasswordFailureUnavailable, err)
	}

	ok, err := deps.CheckPassword(ctx, a, current)
	if err != nil {
		return res.fail(PasswordFailureUnavailable, err)
	}
	if !ok {
		return res.fail(PasswordFailureWrongCurrent, accounts.ErrBadPassword)
	}
	if err := deps.CheckPolicy(next); err != nil {
		return res.fail(PasswordFailureWeak, err)
	}

	return setAndRevoke(ctx, res, next, deps)
}

// RunRequestPasswordReset issues a reset token for email when an active
// account exists. Unknown emails succeed silently.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordDeps) PasswordResult {
	decision, err := deps.Throttle(ctx, email)
	if err != nil {
		return PasswordResult{Failure: PasswordFailureUnavailable, Err: err}
	}
	if !decision.Allowed {
		return PasswordResult{Failure: PasswordFailureRateLimited, RetryAfter: decision.RetryAfter}
	}

	a, err := deps.LookupAccount(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return PasswordResult{}
		}
		return PasswordResult{Failure: PasswordFailureUnavailable, Err: err}
	}
	if !a.Active {
		return PasswordResult{AccountID: a.ID}
	}

	tok, err := deps.IssueToken(ctx, a.ID, deps.ResetTTL)
	if err != nil {
		return PasswordResult{Failure: PasswordFailureUnavailable, Err: err, AccountID: a.ID}
	}
	if err := deps.SendReset(ctx, a, tok, deps.Now().Add(deps.ResetTTL)); err != nil {
		return PasswordResult{Failure: PasswordFailureUnavailable, Err: err, AccountID: a.ID}
	}
	return PasswordResult{AccountID: a.ID}
}

// RunResetPassword redeems tok and sets next as the password. The policy is
// checked first so a rejected password does not burn the token.
func RunResetPassword(ctx context.Context, tok, next string, deps PasswordDeps) PasswordResult {
	if err := deps.CheckPolicy(next); err != nil {
		return PasswordResult{Failure: PasswordFailureWeak, Err: err}
	}

	accountID, err := deps.ConsumeToken(ctx, tok)
	if err != nil {
		if errors.Is(err, stores.ErrTokenNotFound) {
			return PasswordResult{Failure: PasswordFailureInvalidToken, Err: err}
		}
		return PasswordResult{Failure: PasswordFailureUnavailable, Err: err}
	}

	return setAndRevoke(ctx, PasswordResult{AccountID: accountID}, next, deps)
}

func setAndRevoke(ctx context.Context, res PasswordResult, next string, deps PasswordDeps) PasswordResult {
	if err := deps.SetPassword(ctx, res.AccountID, next); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return res.fail(PasswordFailureNotFound, err)
		}
		return res.fail(PasswordFailureUnavailable, err)
	}

	n, err := deps.RevokeAll(ctx, res.AccountID)
	if err != nil {
		// The password changed but old sessions survive; callers must see
		// this as a failure.
		return res.fail(PasswordFailureUnavailable, err)
	}
	res.Revoked = n
	return res
}

func (r PasswordResult) fail(kind PasswordFailureKind, err error) PasswordResult {
	r.Failure = kind
	r.Err = err
	return r
}
