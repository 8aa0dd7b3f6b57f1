package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/internal/rate"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureInvalidCredentials
	LoginFailureLocked
	LoginFailureUnverified
	LoginFailureInactive
	LoginFailureTOTPRequired
	LoginFailureTOTPInvalid
	LoginFailureUnavailable
	LoginFailureIssue
)

// LoginInput is one login attempt.
type LoginInput struct {
	Email     string
	Password  string
	TOTPCode  string
	IP        string
	UserAgent string
}

// LoginResult carries either the issued session or failure metadata.
type LoginResult struct {
	Failure    LoginFailureKind
	Err        error
	RetryAfter time.Duration
	Account    *accounts.Account
	Issued     *Issued
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Now               func() time.Time
	RequireVerified   bool
	ReserveAttempt    func(ctx context.Context, ip, email string) (rate.Decision, error)
	ReleaseAttempt    func(ctx context.Context, ip, email string) error
	ResetRate         func(ctx context.Context, ip, email string) error
	LookupAccount     func(ctx context.Context, email string) (*accounts.Account, error)
	VerifyCredentials func(ctx context.Context, email, password string) (*accounts.Account, error)
	VerifyTOTP        func(ctx context.Context, a *accounts.Account, code string) (bool, error)
	IssueSession      func(ctx context.Context, a *accounts.Account, ip, userAgent string) (*Issued, error)
	Warn              func(op string, err error)
}

// RunLogin walks the attempt reservation, credential check, lockout, the
// optional second factor, token issuance and session recording in that
// order. Every attempt is counted up front; wrong passwords and wrong codes
// keep their reservation, attempts that prove the password give it back.
func RunLogin(ctx context.Context, in LoginInput, deps LoginDeps) LoginResult {
	now := deps.Now()

	decision, err := deps.ReserveAttempt(ctx, in.IP, in.Email)
	if err != nil {
		return LoginResult{Failure: LoginFailureUnavailable, Err: err}
	}
	if !decision.Allowed {
		// A locked account reports the lock, which outlives the window.
		if a, lookupErr := deps.LookupAccount(ctx, in.Email); lookupErr == nil && a.Locked(now) {
			return LoginResult{Failure: LoginFailureLocked, Account: a, RetryAfter: a.LockedUntil.Sub(now)}
		}
		return LoginResult{Failure: LoginFailureRateLimited, RetryAfter: decision.RetryAfter}
	}

	a, err := deps.VerifyCredentials(ctx, in.Email, in.Password)
	switch {
	case err == nil:
	case errors.Is(err, accounts.ErrNotFound), errors.Is(err, accounts.ErrBadPassword):
		if a != nil && a.Locked(now) {
			return LoginResult{Failure: LoginFailureLocked, Err: err, Account: a, RetryAfter: a.LockedUntil.Sub(now)}
		}
		return LoginResult{Failure: LoginFailureInvalidCredentials, Err: err, Account: a}
	case errors.Is(err, accounts.ErrLocked):
		return LoginResult{Failure: LoginFailureLocked, Err: err, Account: a, RetryAfter: a.LockedUntil.Sub(now)}
	case errors.Is(err, accounts.ErrInactive):
		release(ctx, in, deps)
		return LoginResult{Failure: LoginFailureInactive, Err: err, Account: a}
	default:
		release(ctx, in, deps)
		return LoginResult{Failure: LoginFailureUnavailable, Err: err}
	}

	if deps.RequireVerified && !a.Verified {
		release(ctx, in, deps)
		return LoginResult{Failure: LoginFailureUnverified, Account: a}
	}

	if a.TOTPEnabled {
		if in.TOTPCode == "" {
			release(ctx, in, deps)
			return LoginResult{Failure: LoginFailureTOTPRequired, Account: a}
		}
		ok, err := deps.VerifyTOTP(ctx, a, in.TOTPCode)
		if err != nil {
			release(ctx, in, deps)
			return LoginResult{Failure: LoginFailureUnavailable, Err: err, Account: a}
		}
		if !ok {
			return LoginResult{Failure: LoginFailureTOTPInvalid, Account: a}
		}
	}

	if err := deps.ResetRate(ctx, in.IP, in.Email); err != nil {
		deps.Warn("login_rate_reset", err)
	}

	issued, err := deps.IssueSession(ctx, a, in.IP, in.UserAgent)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, Account: a}
	}
	return LoginResult{Account: a, Issued: issued}
}

func release(ctx context.Context, in LoginInput, deps LoginDeps) {
	if err := deps.ReleaseAttempt(ctx, in.IP, in.Email); err != nil {
		deps.Warn("login_rate_release", err)
	}
}
