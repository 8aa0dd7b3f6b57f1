package authcore

import (
	"context"
	"strconv"

	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/internal/flows"
)

// RequestPasswordReset sends a reset token to email when it belongs to an
// active account. Unknown emails get the same answer.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	email = accounts.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetRequest)
	res := e.flow.RequestPasswordReset(ctx, email)
	switch res.Failure {
	case flows.PasswordFailureNone:
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, res.AccountID, "", nil, nil)
		return nil
	case flows.PasswordFailureRateLimited:
		err := retryable(ErrRateLimited, res.RetryAfter)
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", err, nil)
		return err
	default:
		e.metricInc(MetricStoreUnavailable)
		return unavailable(res.Err)
	}
}

// ResetPassword redeems a reset token and sets next as the password. The
// lockout is cleared and every session of the account is revoked. A
// password rejected by the policy leaves the token usable.
func (e *Engine) ResetPassword(ctx context.Context, tok, next string) error {
	if err := e.ready(); err != nil {
		return err
	}

	res := e.flow.ResetPassword(ctx, tok, next)

	var err error
	switch res.Failure {
	case flows.PasswordFailureNone:
	case flows.PasswordFailureWeak:
		err = res.Err
	case flows.PasswordFailureInvalidToken, flows.PasswordFailureNotFound:
		err = ErrInvalidOrExpiredToken
	default:
		e.metricInc(MetricStoreUnavailable)
		err = unavailable(res.Err)
	}
	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, res.AccountID, "", err, nil)
		return err
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, res.AccountID, "", nil, func() map[string]string {
		return map[string]string{"sessions_revoked": strconv.Itoa(res.Revoked)}
	})
	return nil
}
