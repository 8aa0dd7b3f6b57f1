package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/internal/flows"
)

// VerifyEmail redeems a verification token. Tokens are single use.
func (e *Engine) VerifyEmail(ctx context.Context, tok string) error {
	if err := e.ready(); err != nil {
		return err
	}

	res := e.flow.VerifyEmail(ctx, tok)
	switch res.Failure {
	case flows.VerificationFailureNone:
		e.metricInc(MetricEmailVerificationSuccess)
		e.emitAudit(ctx, auditEventEmailVerified, true, res.AccountID, "", nil, nil)
		return nil
	case flows.VerificationFailureInvalidToken:
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerified, false, res.AccountID, "", ErrInvalidOrExpiredToken, nil)
		return ErrInvalidOrExpiredToken
	default:
		e.metricInc(MetricStoreUnavailable)
		return unavailable(res.Err)
	}
}

// ResendVerification sends a fresh verification token to email when it
// belongs to an unverified account. The answer does not reveal whether the
// email is registered; only the rate limit is reported.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	email = accounts.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	res := e.flow.ResendVerification(ctx, email)
	switch res.Failure {
	case flows.VerificationFailureNone:
		e.emitAudit(ctx, auditEventVerificationRequested, true, res.AccountID, "", nil, nil)
		return nil
	case flows.VerificationFailureRateLimited:
		return retryable(ErrRateLimited, res.RetryAfter)
	default:
		e.metricInc(MetricStoreUnavailable)
		return unavailable(res.Err)
	}
}
