package authcore

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/internal/flows"
)

// Login authenticates email and password, and the TOTP code for accounts
// with two-factor enabled. On success it creates a session and returns its
// tokens. The client IP and user agent are taken from ctx, see
// [WithClientIP].
//
// Unknown emails and wrong passwords both return ErrInvalidCredentials.
// ErrAccountLocked and ErrRateLimited carry a retry hint, see [RetryAfter].
func (e *Engine) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res := e.flow.Login(ctx, flows.LoginInput{
		Email:     accounts.NormalizeEmail(in.Email),
		Password:  in.Password,
		TOTPCode:  in.TOTPCode,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	})

	var accountID string
	if res.Account != nil {
		accountID = res.Account.ID
	}

	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		err := retryable(ErrRateLimited, res.RetryAfter)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", err, func() map[string]string {
			return map[string]string{"retry_after": strconv.Itoa(RetryAfterSeconds(res.RetryAfter))}
		})
		return nil, err
	case flows.LoginFailureLocked:
		e.metricInc(MetricLoginLocked)
		err := retryable(ErrAccountLocked, res.RetryAfter)
		e.emitAudit(ctx, auditEventLoginLocked, false, accountID, "", err, nil)
		return nil, err
	case flows.LoginFailureInvalidCredentials:
		return nil, e.loginFailed(ctx, accountID, ErrInvalidCredentials)
	case flows.LoginFailureUnverified:
		e.metricInc(MetricLoginUnverified)
		return nil, e.loginFailed(ctx, accountID, ErrAccountUnverified)
	case flows.LoginFailureInactive:
		return nil, e.loginFailed(ctx, accountID, ErrAccountInactive)
	case flows.LoginFailureTOTPRequired:
		e.metricInc(MetricTOTPRequired)
		return nil, ErrTOTPRequired
	case flows.LoginFailureTOTPInvalid:
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, false, accountID, "", ErrTOTPInvalid, nil)
		return nil, e.loginFailed(ctx, accountID, ErrTOTPInvalid)
	case flows.LoginFailureUnavailable:
		e.metricInc(MetricStoreUnavailable)
		return nil, e.loginFailed(ctx, accountID, unavailable(res.Err))
	default:
		return nil, e.loginFailed(ctx, accountID, unavailable(res.Err))
	}

	if res.Account.TOTPEnabled {
		e.metricInc(MetricTOTPSuccess)
	}
	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.Account.ID, res.Issued.Session.ID, nil, nil)

	return &LoginResult{
		Account: viewOf(res.Account),
		Tokens:  tokensOf(res.Issued),
	}, nil
}

func (e *Engine) loginFailed(ctx context.Context, accountID string, err error) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, accountID, "", err, nil)
	return err
}

// Refresh rotates refreshToken. The presented token becomes unusable and a
// new access, refresh and CSRF token are returned for the same session.
//
// Presenting a refresh token that was already rotated away is treated as
// theft: the whole session is revoked and ErrInvalidOrExpiredToken is
// returned.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if refreshToken == "" {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrInvalidOrExpiredToken
	}

	res := e.flow.Refresh(ctx, refreshToken)
	switch res.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		e.metricInc(MetricSessionRevoked)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, res.AccountID, res.SessionID, ErrInvalidOrExpiredToken, nil)
		return nil, ErrInvalidOrExpiredToken
	case flows.RefreshFailureAccount:
		e.metricInc(MetricRefreshFailure)
		err := ErrInvalidOrExpiredToken
		if errors.Is(res.Err, accounts.ErrInactive) {
			err = ErrAccountInactive
		}
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.AccountID, res.SessionID, err, nil)
		return nil, err
	case flows.RefreshFailureUnavailable:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricStoreUnavailable)
		return nil, unavailable(res.Err)
	case flows.RefreshFailureIssue:
		e.metricInc(MetricRefreshFailure)
		return nil, unavailable(res.Err)
	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.AccountID, res.SessionID, ErrInvalidOrExpiredToken, nil)
		return nil, ErrInvalidOrExpiredToken
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.AccountID, res.SessionID, nil, nil)

	tokens := tokensOf(res.Issued)
	return &tokens, nil
}

// Logout ends the principal's session. The access token is revoked, and so
// is refreshToken when it belongs to the same session. Every step runs even
// when an earlier one fails; any failure is returned as ErrUnavailable.
func (e *Engine) Logout(ctx context.Context, p *Principal, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if p == nil {
		return ErrNotAuthenticated
	}

	err := e.flow.Logout(ctx, flows.LogoutInput{
		AccountID:    p.AccountID,
		SessionID:    p.SessionID,
		AccessJTI:    p.TokenID,
		AccessExp:    p.ExpiresAt,
		RefreshToken: refreshToken,
	})
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		e.emitAudit(ctx, auditEventLogoutSession, false, p.AccountID, p.SessionID, err, nil)
		return unavailable(err)
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventLogoutSession, true, p.AccountID, p.SessionID, nil, nil)
	return nil
}

// LogoutAll revokes every session of the principal's account and reports
// how many were ended. The current access token is revoked as well.
func (e *Engine) LogoutAll(ctx context.Context, p *Principal) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if p == nil {
		return 0, ErrNotAuthenticated
	}

	n, err := e.flow.LogoutAll(ctx, p.AccountID)
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		e.emitAudit(ctx, auditEventLogoutAll, false, p.AccountID, p.SessionID, err, nil)
		return 0, unavailable(err)
	}
	if p.TokenID != "" {
		if err := e.tokens.RevokeID(ctx, p.TokenID, p.ExpiresAt); err != nil {
			e.warn("logout_all_revoke_access", err)
		}
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, p.AccountID, p.SessionID, nil, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(n)}
	})
	return n, nil
}
