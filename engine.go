package authcore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/csrf"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/notify"
	"github.com/MrEthical07/authcore/internal/otp"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/token"
	"github.com/rs/zerolog"
)

// Engine is the authentication core. It is safe for concurrent use; every
// piece of shared state lives in Redis or the account store.
type Engine struct {
	config Config
	log    zerolog.Logger
	now    func() time.Time

	accounts accounts.Store
	creds    *accounts.Credentials
	sessions *session.Store
	tokens   *token.Service
	jwt      *jwt.Manager
	csrf     *csrf.Guard
	roles    *permission.RoleManager
	totp     otp.TOTP

	loginLimiter         *limiters.LoginLimiter
	registerThrottle     *limiters.Throttle
	resetThrottle        *limiters.Throttle
	verificationThrottle *limiters.Throttle
	verifyTokens         *stores.OneTimeTokens
	resetTokens          *stores.OneTimeTokens
	notifier             notify.Notifier

	audit   *internalaudit.Dispatcher
	metrics *Metrics
	flow    flows.Service
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Ping checks Redis and the account store.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	if err := e.sessions.Ping(ctx); err != nil {
		return unavailable(err)
	}
	if err := e.accounts.Ping(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return emptySnapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(op string, err error) {
	e.log.Warn().Err(err).Str("op", op).Msg("best-effort step failed")
}

func unavailable(err error) error {
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (e *Engine) ready() error {
	if e == nil || !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) issueAccess(a *accounts.Account, sessionID string) (token.Issued, error) {
	return e.tokens.IssueAccess(a.ID, sessionID, string(a.Role), e.roles.Permissions(a.Role))
}

func tokensOf(issued *flows.Issued) Tokens {
	return Tokens{
		SessionID:        issued.Session.ID,
		AccessToken:      issued.Access.Token,
		AccessExpiresAt:  issued.Access.ExpiresAt,
		RefreshToken:     issued.Refresh.Token,
		RefreshExpiresAt: issued.Refresh.ExpiresAt,
		CSRFToken:        issued.CSRF,
	}
}

func (e *Engine) notifyMessage(ctx context.Context, kind notify.Kind, a *accounts.Account, tok string, expiresAt time.Time) error {
	return e.notifier.Notify(ctx, notify.Message{
		Kind:      kind,
		To:        a.Email,
		AccountID: a.ID,
		Token:     tok,
		ExpiresAt: expiresAt,
	})
}

func (e *Engine) buildFlows() flows.Service {
	issue := flows.IssueDeps{
		NewSessionID:  session.NewID,
		IssueAccess:   e.issueAccess,
		IssueRefresh:  e.tokens.IssueRefresh,
		CreateSession: e.sessions.Create,
		GenerateCSRF:  e.csrf.Generate,
	}

	verification := flows.VerificationDeps{
		TokenTTL:      e.config.EmailVerification.TokenTTL,
		Now:           e.now,
		Throttle:      e.verificationThrottle.Enforce,
		LookupAccount: e.accounts.ByEmail,
		IssueToken:    e.verifyTokens.Issue,
		ConsumeToken:  e.verifyTokens.Consume,
		MarkVerified:  e.accounts.MarkVerified,
		Send: func(ctx context.Context, a *accounts.Account, tok string, expiresAt time.Time) error {
			return e.notifyMessage(ctx, notify.KindVerifyEmail, a, tok, expiresAt)
		},
	}

	totp := flows.TOTPDeps{
		Now:            e.now,
		LoadAccount:    e.accounts.ByID,
		GenerateSecret: e.totp.GenerateSecret,
		ProvisionURI:   e.totp.ProvisionURI,
		VerifyCode:     e.totp.Verify,
		SetTOTP:        e.accounts.SetTOTP,
		AdvanceCounter: e.accounts.AdvanceTOTPCounter,
	}

	return flows.New(flows.Deps{
		Issue: issue,
		Login: flows.LoginDeps{
			Now:               e.now,
			RequireVerified:   e.config.EmailVerification.Required,
			ReserveAttempt:    e.loginLimiter.Reserve,
			ReleaseAttempt:    e.loginLimiter.Release,
			ResetRate:         e.loginLimiter.Reset,
			LookupAccount:     e.accounts.ByEmail,
			VerifyCredentials: e.creds.Verify,
			VerifyTOTP: func(ctx context.Context, a *accounts.Account, code string) (bool, error) {
				return flows.RunVerifyTOTP(ctx, a, code, totp)
			},
			IssueSession: func(ctx context.Context, a *accounts.Account, ip, userAgent string) (*flows.Issued, error) {
				return flows.RunIssueSession(ctx, a, ip, userAgent, issue)
			},
			Warn: e.warn,
		},
		Refresh: flows.RefreshDeps{
			RequireVerified: e.config.EmailVerification.Required,
			ParseRefresh: func(tokenStr string) (*jwt.Claims, error) {
				return e.tokens.Parse(tokenStr, jwt.KindRefresh)
			},
			IsRevoked:     e.tokens.IsRevoked,
			GetSession:    e.sessions.Get,
			RevokeSession: e.sessions.Revoke,
			LoadAccount:   e.accounts.ByID,
			IssueAccess:   e.issueAccess,
			IssueRefresh:  e.tokens.IssueRefresh,
			Rotate:        e.sessions.Rotate,
			RevokeJTI:     e.tokens.RevokeID,
			GenerateCSRF:  e.csrf.Generate,
			Warn:          e.warn,
		},
		Authorize: flows.AuthorizeDeps{
			VerifyAccess: func(ctx context.Context, tokenStr string) (*jwt.Claims, error) {
				return e.tokens.Verify(ctx, tokenStr, jwt.KindAccess)
			},
			GetSession: e.sessions.Get,
		},
		Logout: flows.LogoutDeps{
			ParseRefreshIgnoringExpiry: e.jwt.ParseIgnoringExpiry,
			RevokeJTI:                  e.tokens.RevokeID,
			RevokeSession:              e.sessions.Revoke,
			RevokeAll:                  e.sessions.RevokeAll,
		},
		Register: flows.RegisterDeps{
			RequireVerified: e.config.EmailVerification.Required,
			Throttle:        e.registerThrottle.Enforce,
			ValidateInput:   validateRegistration,
			CheckPolicy:     e.config.PasswordPolicy.Check,
			Create:          e.creds.Create,
			SendVerification: func(ctx context.Context, a *accounts.Account) error {
				return flows.RunSendVerification(ctx, a, verification)
			},
			Warn: e.warn,
		},
		Password: flows.PasswordDeps{
			ResetTTL:      e.config.PasswordReset.TokenTTL,
			LoadAccount:   e.accounts.ByID,
			LookupAccount: e.accounts.ByEmail,
			CheckPassword: e.creds.CheckPassword,
			CheckPolicy:   e.config.PasswordPolicy.Check,
			SetPassword:   e.creds.SetPassword,
			RevokeAll:     e.sessions.RevokeAll,
			Throttle:      e.resetThrottle.Enforce,
			IssueToken:    e.resetTokens.Issue,
			ConsumeToken:  e.resetTokens.Consume,
			SendReset: func(ctx context.Context, a *accounts.Account, tok string, expiresAt time.Time) error {
				return e.notifyMessage(ctx, notify.KindPasswordReset, a, tok, expiresAt)
			},
			Now: e.now,
		},
		Verification: verification,
		TOTP:         totp,
		Status: flows.StatusDeps{
			LoadAccount: e.accounts.ByID,
			SetRole:     e.accounts.SetRole,
			SetActive:   e.accounts.SetActive,
			Delete:      e.accounts.Delete,
			RevokeAll:   e.sessions.RevokeAll,
		},
	})
}

// Authorize validates an access token and returns its principal. In
// ModeStrict the backing session must still exist.
func (e *Engine) Authorize(ctx context.Context, accessToken string) (*Principal, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return e.AuthorizeMode(ctx, accessToken, e.config.ValidationMode)
}

// AuthorizeMode is [Engine.Authorize] with the validation mode chosen by the
// caller, for routes that need a stricter or cheaper check than the default.
func (e *Engine) AuthorizeMode(ctx context.Context, accessToken string, mode ValidationMode) (*Principal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricAuthorizeLatency, time.Since(start)) }()
	}

	if accessToken == "" {
		return nil, ErrNotAuthenticated
	}

	res := e.flow.Authorize(ctx, accessToken, mode == ModeStrict)
	switch res.Failure {
	case flows.AuthorizeFailureNone:
	case flows.AuthorizeFailureUnavailable:
		e.metricInc(MetricStoreUnavailable)
		return nil, unavailable(res.Err)
	default:
		e.metricInc(MetricAuthorizeFailure)
		return nil, ErrInvalidOrExpiredToken
	}

	role, err := permission.Parse(res.Claims.Role)
	if err != nil {
		e.metricInc(MetricAuthorizeFailure)
		return nil, ErrInvalidOrExpiredToken
	}

	p := &Principal{
		AccountID:   res.Claims.Subject,
		SessionID:   res.Claims.SID,
		Role:        role,
		Permissions: res.Claims.Permissions,
		TokenID:     res.Claims.ID,
	}
	if res.Claims.ExpiresAt != nil {
		p.ExpiresAt = res.Claims.ExpiresAt.Time
	}
	return p, nil
}

// AuthorizeRequest authorizes the access cookie of r. It returns nil for
// unauthenticated requests and on any validation failure.
func (e *Engine) AuthorizeRequest(r *http.Request) *Principal {
	if e == nil || r == nil {
		return nil
	}
	c, err := r.Cookie(e.config.Cookie.AccessName)
	if err != nil || c.Value == "" {
		return nil
	}
	p, err := e.Authorize(r.Context(), c.Value)
	if err != nil {
		return nil
	}
	return p
}

// VerifyCSRF checks that tok was issued for the principal's session and is
// not older than the configured max age.
func (e *Engine) VerifyCSRF(ctx context.Context, p *Principal, tok string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if p == nil {
		return ErrNotAuthenticated
	}
	if err := e.csrf.Verify(tok, p.SessionID); err != nil {
		e.metricInc(MetricCSRFFailure)
		e.emitAudit(ctx, auditEventCSRFRejected, false, p.AccountID, p.SessionID, ErrCSRFFailure, nil)
		return fmt.Errorf("%w: %v", ErrCSRFFailure, err)
	}
	return nil
}
