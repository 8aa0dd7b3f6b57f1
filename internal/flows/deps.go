package flows

import (
	"context"

	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/token"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Issue        IssueDeps
	Login        LoginDeps
	Refresh      RefreshDeps
	Authorize    AuthorizeDeps
	Logout       LogoutDeps
	Register     RegisterDeps
	Password     PasswordDeps
	Verification VerificationDeps
	TOTP         TOTPDeps
	Status       StatusDeps
}

// Issued is the token set produced for a fresh or rotated session.
type Issued struct {
	Session *session.Session
	Access  token.Issued
	Refresh token.Issued
	CSRF    string
}

// IssueDeps creates a session and its first token pair.
type IssueDeps struct {
	NewSessionID  func() string
	IssueAccess   func(a *accounts.Account, sessionID string) (token.Issued, error)
	IssueRefresh  func(accountID, sessionID string) (token.Issued, error)
	CreateSession func(ctx context.Context, s *session.Session) error
	GenerateCSRF  func(sessionID string) string
}

// RunIssueSession records a new session for a and signs its tokens. The
// session is stored with the refresh jti it will accept on first rotation.
func RunIssueSession(ctx context.Context, a *accounts.Account, ip, userAgent string, deps IssueDeps) (*Issued, error) {
	sid := deps.NewSessionID()

	access, err := deps.IssueAccess(a, sid)
	if err != nil {
		return nil, err
	}
	refresh, err := deps.IssueRefresh(a.ID, sid)
	if err != nil {
		return nil, err
	}

	sess := &session.Session{
		ID:         sid,
		AccountID:  a.ID,
		IP:         ip,
		UserAgent:  userAgent,
		RefreshJTI: refresh.JTI,
	}
	if err := deps.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	return &Issued{
		Session: sess,
		Access:  access,
		Refresh: refresh,
		CSRF:    deps.GenerateCSRF(sid),
	}, nil
}
