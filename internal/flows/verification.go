package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
)

// VerificationFailureKind classifies email verification failures.
type VerificationFailureKind int

const (
	VerificationFailureNone VerificationFailureKind = iota
	VerificationFailureInvalidToken
	VerificationFailureRateLimited
	VerificationFailureUnavailable
)

// VerificationResult reports the outcome of a verification operation.
type VerificationResult struct {
	Failure    VerificationFailureKind
	Err        error
	RetryAfter time.Duration
	AccountID  string
}

// VerificationDeps captures email verification dependencies.
type VerificationDeps struct {
	TokenTTL      time.Duration
	Now           func() time.Time
	Throttle      func(ctx context.Context, email string) (rate.Decision, error)
	LookupAccount func(ctx context.Context, email string) (*accounts.Account, error)
	IssueToken    func(ctx context.Context, accountID string, ttl time.Duration) (string, error)
	ConsumeToken  func(ctx context.Context, token string) (string, error)
	MarkVerified  func(ctx context.Context, accountID string) error
	Send          func(ctx context.Context, a *accounts.Account, token string, expiresAt time.Time) error
}

// RunSendVerification issues a verification token for a and hands it to the
// notifier.
func RunSendVerification(ctx context.Context, a *accounts.Account, deps VerificationDeps) error {
	tok, err := deps.IssueToken(ctx, a.ID, deps.TokenTTL)
	if err != nil {
		return err
	}
	return deps.Send(ctx, a, tok, deps.Now().Add(deps.TokenTTL))
}

// RunVerifyEmail redeems tok and marks its account verified.
func RunVerifyEmail(ctx context.Context, tok string, deps VerificationDeps) VerificationResult {
	accountID, err := deps.ConsumeToken(ctx, tok)
	if err != nil {
		if errors.Is(err, stores.ErrTokenNotFound) {
			return VerificationResult{Failure: VerificationFailureInvalidToken, Err: err}
		}
		return VerificationResult{Failure: VerificationFailureUnavailable, Err: err}
	}

	if err := deps.MarkVerified(ctx, accountID); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return VerificationResult{Failure: VerificationFailureInvalidToken, Err: err, AccountID: accountID}
		}
		return VerificationResult{Failure: VerificationFailureUnavailable, Err: err, AccountID: accountID}
	}
	return VerificationResult{AccountID: accountID}
}

// RunResendVerification re-sends a token to unverified accounts. Unknown and
// already verified emails succeed silently.
func RunResendVerification(ctx context.Context, email string, deps VerificationDeps) VerificationResult {
	decision, err := deps.Throttle(ctx, email)
	if err != nil {
		return VerificationResult{Failure: VerificationFailureUnavailable, Err: err}
	}
	if !decision.Allowed {
		return VerificationResult{Failure: VerificationFailureRateLimited, RetryAfter: decision.RetryAfter}
	}

	a, err := deps.LookupAccount(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return VerificationResult{}
		}
		return VerificationResult{Failure: VerificationFailureUnavailable, Err: err}
	}
	if a.Verified || !a.Active {
		return VerificationResult{AccountID: a.ID}
	}

	if err := RunSendVerification(ctx, a, deps); err != nil {
		return VerificationResult{Failure: VerificationFailureUnavailable, Err: err, AccountID: a.ID}
	}
	return VerificationResult{AccountID: a.ID}
}
