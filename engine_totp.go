package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/internal/flows"
)

// SetupTOTP generates a pending two-factor secret for the principal. It
// takes effect once confirmed with [Engine.EnableTOTP].
func (e *Engine) SetupTOTP(ctx context.Context, p *Principal) (*TOTPSetup, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotAuthenticated
	}

	res := e.flow.SetupTOTP(ctx, p.AccountID)
	if err := e.totpError(res); err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventTOTPSetupRequested, true, p.AccountID, p.SessionID, nil, nil)
	return &TOTPSetup{Secret: res.Secret, URI: res.URI}, nil
}

// EnableTOTP turns two-factor login on after code proves the pending secret
// was enrolled.
func (e *Engine) EnableTOTP(ctx context.Context, p *Principal, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if p == nil {
		return ErrNotAuthenticated
	}

	if err := e.totpError(e.flow.EnableTOTP(ctx, p.AccountID, code)); err != nil {
		e.emitAudit(ctx, auditEventTOTPEnabled, false, p.AccountID, p.SessionID, err, nil)
		return err
	}
	e.metricInc(MetricTOTPSuccess)
	e.emitAudit(ctx, auditEventTOTPEnabled, true, p.AccountID, p.SessionID, nil, nil)
	return nil
}

// DisableTOTP turns two-factor login off. A current code is required.
func (e *Engine) DisableTOTP(ctx context.Context, p *Principal, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if p == nil {
		return ErrNotAuthenticated
	}

	if err := e.totpError(e.flow.DisableTOTP(ctx, p.AccountID, code)); err != nil {
		e.emitAudit(ctx, auditEventTOTPDisabled, false, p.AccountID, p.SessionID, err, nil)
		return err
	}
	e.emitAudit(ctx, auditEventTOTPDisabled, true, p.AccountID, p.SessionID, nil, nil)
	return nil
}

func (e *Engine) totpError(res flows.TOTPResult) error {
	switch res.Failure {
	case flows.TOTPFailureNone:
		return nil
	case flows.TOTPFailureAlreadyEnabled:
		return ErrTOTPAlreadyEnabled
	case flows.TOTPFailureNotEnabled:
		return ErrTOTPNotEnabled
	case flows.TOTPFailureInvalidCode:
		e.metricInc(MetricTOTPFailure)
		return ErrTOTPInvalid
	case flows.TOTPFailureNotFound:
		return ErrAccountNotFound
	default:
		e.metricInc(MetricStoreUnavailable)
		return unavailable(res.Err)
	}
}
