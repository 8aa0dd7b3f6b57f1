package authcore

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/internal/flows"
)

// Register creates an unverified customer account and sends it a
// verification token. No session is created. Registrations are throttled
// per client IP.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*AccountView, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res := e.flow.Register(ctx, flows.RegisterInput{
		Email:    accounts.NormalizeEmail(in.Email),
		Username: in.Username,
		FullName: in.FullName,
		Password: in.Password,
		IP:       clientIPFromContext(ctx),
	})

	var err error
	switch res.Failure {
	case flows.RegisterFailureNone:
	case flows.RegisterFailureRateLimited:
		e.metricInc(MetricRegisterRateLimited)
		err = retryable(ErrRateLimited, res.RetryAfter)
	case flows.RegisterFailureInvalid:
		err = res.Err
		if !errors.Is(err, ErrInvalidInput) {
			err = ErrInvalidInput
		}
	case flows.RegisterFailureWeakPassword:
		err = res.Err
	case flows.RegisterFailureDuplicate:
		e.metricInc(MetricRegisterDuplicate)
		err = ErrDuplicateIdentity
	default:
		e.metricInc(MetricStoreUnavailable)
		err = unavailable(res.Err)
	}
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, res.Account.ID, "", nil, nil)
	return viewOf(res.Account), nil
}

// Me returns the principal's account.
func (e *Engine) Me(ctx context.Context, p *Principal) (*AccountView, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotAuthenticated
	}

	a, err := e.accounts.ByID(ctx, p.AccountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, unavailable(err)
	}
	return viewOf(a), nil
}

// ChangePassword replaces the principal's password after checking the
// current one. Every session of the account is revoked, so the caller must
// log in again.
func (e *Engine) ChangePassword(ctx context.Context, p *Principal, current, next string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if p == nil {
		return ErrNotAuthenticated
	}

	res := e.flow.ChangePassword(ctx, p.AccountID, current, next)

	var err error
	switch res.Failure {
	case flows.PasswordFailureNone:
	case flows.PasswordFailureWrongCurrent:
		e.metricInc(MetricPasswordChangeWrongCurrent)
		err = ErrWrongCurrentPassword
	case flows.PasswordFailureWeak:
		err = res.Err
	case flows.PasswordFailureNotFound:
		err = ErrAccountNotFound
	default:
		e.metricInc(MetricStoreUnavailable)
		err = unavailable(res.Err)
	}
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChange, false, p.AccountID, p.SessionID, err, nil)
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, p.AccountID, p.SessionID, nil, func() map[string]string {
		return map[string]string{"sessions_revoked": strconv.Itoa(res.Revoked)}
	})
	return nil
}
