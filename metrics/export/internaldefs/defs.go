package internaldefs

import (
	"strconv"

	"github.com/MrEthical07/authcore"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter of audit events lost to a full buffer.
const AuditDroppedName = "authcore_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed logins."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Logins rejected by the rate limiter."},
	{ID: authcore.MetricLoginLocked, Name: "authcore_login_locked_total", Help: "Logins rejected because the account is locked."},
	{ID: authcore.MetricLoginUnverified, Name: "authcore_login_unverified_total", Help: "Logins rejected because the email is not verified."},
	{ID: authcore.MetricTOTPRequired, Name: "authcore_totp_required_total", Help: "Logins that asked for a TOTP code."},
	{ID: authcore.MetricTOTPSuccess, Name: "authcore_totp_success_total", Help: "Accepted TOTP codes."},
	{ID: authcore.MetricTOTPFailure, Name: "authcore_totp_failure_total", Help: "Rejected TOTP codes."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Rejected refresh tokens."},
	{ID: authcore.MetricRefreshReuseDetected, Name: "authcore_refresh_reuse_detected_total", Help: "Rotated refresh tokens presented again."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Created sessions."},
	{ID: authcore.MetricSessionRevoked, Name: "authcore_session_revoked_total", Help: "Sessions revoked by their owner."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Single-session logouts."},
	{ID: authcore.MetricLogoutAll, Name: "authcore_logout_all_total", Help: "Logout-all operations."},
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Registered accounts."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: authcore.MetricRegisterRateLimited, Name: "authcore_register_rate_limited_total", Help: "Registrations rejected by the rate limiter."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Successful password changes."},
	{ID: authcore.MetricPasswordChangeWrongCurrent, Name: "authcore_password_change_wrong_current_total", Help: "Password changes with a wrong current password."},
	{ID: authcore.MetricPasswordResetRequest, Name: "authcore_password_reset_request_total", Help: "Password reset requests."},
	{ID: authcore.MetricPasswordResetSuccess, Name: "authcore_password_reset_success_total", Help: "Completed password resets."},
	{ID: authcore.MetricPasswordResetFailure, Name: "authcore_password_reset_failure_total", Help: "Failed password resets."},
	{ID: authcore.MetricEmailVerificationSuccess, Name: "authcore_email_verification_success_total", Help: "Verified email addresses."},
	{ID: authcore.MetricEmailVerificationFailure, Name: "authcore_email_verification_failure_total", Help: "Rejected verification tokens."},
	{ID: authcore.MetricAuthorizeFailure, Name: "authcore_authorize_failure_total", Help: "Rejected access tokens."},
	{ID: authcore.MetricCSRFFailure, Name: "authcore_csrf_failure_total", Help: "Rejected CSRF tokens."},
	{ID: authcore.MetricAccountRoleChanged, Name: "authcore_account_role_changed_total", Help: "Role changes by admins."},
	{ID: authcore.MetricAccountDisabled, Name: "authcore_account_disabled_total", Help: "Accounts disabled by admins."},
	{ID: authcore.MetricAccountEnabled, Name: "authcore_account_enabled_total", Help: "Accounts enabled by admins."},
	{ID: authcore.MetricAccountDeleted, Name: "authcore_account_deleted_total", Help: "Accounts deleted by admins."},
	{ID: authcore.MetricStoreUnavailable, Name: "authcore_store_unavailable_total", Help: "Requests failed closed on a store error."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricAuthorizeLatency, Name: "authcore_authorize_latency_seconds", Help: "Access token authorization latency."},
}

// BucketCount is the number of engine histogram buckets, the last unbounded.
const BucketCount = 8

// UpperBounds are the finite bucket bounds in seconds.
var UpperBounds = func() []float64 {
	out := make([]float64, len(authcore.HistogramBounds))
	for i, d := range authcore.HistogramBounds {
		out[i] = d.Seconds()
	}
	return out
}()

// BucketLabels are the "le" label values of each bucket, Prometheus style.
var BucketLabels = func() [BucketCount]string {
	var out [BucketCount]string
	for i, le := range UpperBounds {
		out[i] = strconv.FormatFloat(le, 'g', -1, 64)
	}
	out[BucketCount-1] = "+Inf"
	return out
}()

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
