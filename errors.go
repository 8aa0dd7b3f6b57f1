package authcore

import (
	"errors"
	"math"
	"net/http"
	"time"
)

var (
	// ErrDuplicateIdentity is returned when the email or username is taken.
	ErrDuplicateIdentity = errors.New("email or username already registered")
	// ErrWeakPassword is returned when a new password fails the policy.
	ErrWeakPassword = errors.New("password does not meet policy")
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountInactive    = errors.New("account inactive")
	ErrAccountUnverified  = errors.New("account email not verified")
	ErrRateLimited        = errors.New("rate limited")
	// ErrInvalidOrExpiredToken is returned for any token that fails
	// signature, expiry, kind or revocation checks.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrCSRFFailure           = errors.New("csrf token invalid")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrInsufficientRole      = errors.New("insufficient role")
	ErrWrongCurrentPassword  = errors.New("current password is wrong")
	// ErrTOTPRequired asks the client to repeat the login with a code.
	ErrTOTPRequired       = errors.New("totp code required")
	ErrTOTPInvalid        = errors.New("invalid totp code")
	ErrTOTPAlreadyEnabled = errors.New("totp already enabled")
	ErrTOTPNotEnabled     = errors.New("totp not enabled")
	ErrAccountNotFound    = errors.New("account not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidInput       = errors.New("invalid input")
	// ErrUnavailable is returned when a backing store failed or timed out.
	// Requests fail closed.
	ErrUnavailable    = errors.New("authentication backend unavailable")
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RetryError carries the wait hint of a rate limit or lockout. It unwraps to
// ErrRateLimited or ErrAccountLocked.
type RetryError struct {
	Err   error
	After time.Duration
}

func (e *RetryError) Error() string { return e.Err.Error() }

func (e *RetryError) Unwrap() error { return e.Err }

func retryable(err error, after time.Duration) error {
	if after < 0 {
		after = 0
	}
	return &RetryError{Err: err, After: after}
}

// RetryAfter returns the wait hint attached to err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var re *RetryError
	if errors.As(err, &re) {
		return re.After, true
	}
	return 0, false
}

// RetryAfterSeconds rounds d up to whole seconds, as sent in Retry-After.
func RetryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}

type errorInfo struct {
	err    error
	code   string
	status int
}

// Checked in order; the first match wins.
var errorTable = []errorInfo{
	{ErrDuplicateIdentity, "duplicate_identity", http.StatusBadRequest},
	{ErrWeakPassword, "weak_password", http.StatusBadRequest},
	{ErrInvalidCredentials, "invalid_credentials", http.StatusUnauthorized},
	{ErrAccountLocked, "account_locked", http.StatusLocked},
	{ErrAccountInactive, "account_inactive", http.StatusForbidden},
	{ErrAccountUnverified, "account_unverified", http.StatusForbidden},
	{ErrRateLimited, "rate_limited", http.StatusTooManyRequests},
	{ErrInvalidOrExpiredToken, "invalid_or_expired_token", http.StatusUnauthorized},
	{ErrCSRFFailure, "csrf_failure", http.StatusForbidden},
	{ErrNotAuthenticated, "not_authenticated", http.StatusUnauthorized},
	{ErrInsufficientRole, "insufficient_role", http.StatusForbidden},
	{ErrWrongCurrentPassword, "wrong_current_password", http.StatusBadRequest},
	{ErrTOTPRequired, "totp_required", http.StatusUnauthorized},
	{ErrTOTPInvalid, "totp_invalid", http.StatusUnauthorized},
	{ErrTOTPAlreadyEnabled, "totp_already_enabled", http.StatusConflict},
	{ErrTOTPNotEnabled, "totp_not_enabled", http.StatusConflict},
	{ErrAccountNotFound, "account_not_found", http.StatusNotFound},
	{ErrSessionNotFound, "session_not_found", http.StatusNotFound},
	{ErrInvalidInput, "invalid_input", http.StatusBadRequest},
	{ErrUnavailable, "service_unavailable", http.StatusServiceUnavailable},
	{ErrEngineNotReady, "service_unavailable", http.StatusServiceUnavailable},
}

// ErrorCode returns the stable machine-readable code for err.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, info := range errorTable {
		if errors.Is(err, info.err) {
			return info.code
		}
	}
	return "internal_error"
}

// HTTPStatus returns the HTTP status for err.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, info := range errorTable {
		if errors.Is(err, info.err) {
			return info.status
		}
	}
	return http.StatusInternalServerError
}
