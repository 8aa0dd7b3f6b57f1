package flows

import (
	"context"

	"github.com/MrEthical07/authcore/accounts"
)

// Service is the flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired.
func (s Service) Initialized() bool {
	return s.deps.Login.VerifyCredentials != nil && s.deps.Authorize.VerifyAccess != nil
}

func (s Service) IssueSession(ctx context.Context, a *accounts.Account, ip, userAgent string) (*Issued, error) {
	return RunIssueSession(ctx, a, ip, userAgent, s.deps.Issue)
}

func (s Service) Login(ctx context.Context, in LoginInput) LoginResult {
	return RunLogin(ctx, in, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Authorize(ctx context.Context, tokenStr string, checkSession bool) AuthorizeResult {
	return RunAuthorize(ctx, tokenStr, checkSession, s.deps.Authorize)
}

func (s Service) Logout(ctx context.Context, in LogoutInput) error {
	return RunLogout(ctx, in, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, accountID string) (int, error) {
	return RunLogoutAll(ctx, accountID, s.deps.Logout)
}

func (s Service) Register(ctx context.Context, in RegisterInput) RegisterResult {
	return RunRegister(ctx, in, s.deps.Register)
}

func (s Service) ChangePassword(ctx context.Context, accountID, current, next string) PasswordResult {
	return RunChangePassword(ctx, accountID, current, next, s.deps.Password)
}

func (s Service) RequestPasswordReset(ctx context.Context, email string) PasswordResult {
	return RunRequestPasswordReset(ctx, email, s.deps.Password)
}

func (s Service) ResetPassword(ctx context.Context, tok, next string) PasswordResult {
	return RunResetPassword(ctx, tok, next, s.deps.Password)
}

func (s Service) SendVerification(ctx context.Context, a *accounts.Account) error {
	return RunSendVerification(ctx, a, s.deps.Verification)
}

func (s Service) VerifyEmail(ctx context.Context, tok string) VerificationResult {
	return RunVerifyEmail(ctx, tok, s.deps.Verification)
}

func (s Service) ResendVerification(ctx context.Context, email string) VerificationResult {
	return RunResendVerification(ctx, email, s.deps.Verification)
}

func (s Service) VerifyTOTP(ctx context.Context, a *accounts.Account, code string) (bool, error) {
	return RunVerifyTOTP(ctx, a, code, s.deps.TOTP)
}

func (s Service) SetupTOTP(ctx context.Context, accountID string) TOTPResult {
	return RunSetupTOTP(ctx, accountID, s.deps.TOTP)
}

func (s Service) EnableTOTP(ctx context.Context, accountID, code string) TOTPResult {
	return RunEnableTOTP(ctx, accountID, code, s.deps.TOTP)
}

func (s Service) DisableTOTP(ctx context.Context, accountID, code string) TOTPResult {
	return RunDisableTOTP(ctx, accountID, code, s.deps.TOTP)
}

func (s Service) UpdateAccountAndInvalidate(ctx context.Context, change StatusChange) StatusResult {
	return RunUpdateAccountAndInvalidate(ctx, change, s.deps.Status)
}
