package authcore

import (
	"context"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginRateLimited      = "login_rate_limited"
	auditEventLoginLocked           = "login_locked"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventRefreshReuseDetected  = "refresh_reuse_detected"
	auditEventLogoutSession         = "logout_session"
	auditEventLogoutAll             = "logout_all"
	auditEventSessionRevoked        = "session_revoked"
	auditEventRegisterSuccess       = "register_success"
	auditEventRegisterFailure       = "register_failure"
	auditEventPasswordChange        = "password_change"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetConfirm  = "password_reset_confirm"
	auditEventEmailVerified         = "email_verified"
	auditEventVerificationRequested = "email_verification_request"
	auditEventTOTPSetupRequested    = "totp_setup_requested"
	auditEventTOTPEnabled           = "totp_enabled"
	auditEventTOTPDisabled          = "totp_disabled"
	auditEventTOTPFailure           = "totp_failure"
	auditEventAccountRoleChanged    = "account_role_changed"
	auditEventAccountStatusChanged  = "account_status_changed"
	auditEventAccountDeleted        = "account_deleted"
	auditEventCSRFRejected          = "csrf_rejected"
)

// emitAudit queues one event. metadataBuilder only runs when auditing is on.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Error:     ErrorCode(err),
		Metadata:  metadata,
	}

	e.audit.Emit(ctx, event)
}
