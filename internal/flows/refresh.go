package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/token"
)

// RefreshFailureKind classifies refresh failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureInvalid
	RefreshFailureReuse
	RefreshFailureSessionNotFound
	RefreshFailureAccount
	RefreshFailureUnavailable
	RefreshFailureIssue
)

// RefreshResult carries either the rotated token set or failure metadata.
type RefreshResult struct {
	Failure   RefreshFailureKind
	Err       error
	AccountID string
	SessionID string
	Account   *accounts.Account
	Issued    *Issued
}

// RefreshDeps captures refresh rotation dependencies.
type RefreshDeps struct {
	RequireVerified bool
	ParseRefresh    func(tokenStr string) (*jwt.Claims, error)
	IsRevoked       func(ctx context.Context, jti string) (bool, error)
	GetSession      func(ctx context.Context, sid string) (*session.Session, error)
	RevokeSession   func(ctx context.Context, sid string) error
	LoadAccount     func(ctx context.Context, id string) (*accounts.Account, error)
	IssueAccess     func(a *accounts.Account, sessionID string) (token.Issued, error)
	IssueRefresh    func(accountID, sessionID string) (token.Issued, error)
	Rotate          func(ctx context.Context, sid, accountID, oldJTI, newJTI string) error
	RevokeJTI       func(ctx context.Context, jti string, exp time.Time) error
	GenerateCSRF    func(sessionID string) string
	Warn            func(op string, err error)
}

// RunRefresh rotates a refresh token. Presenting a refresh token that is no
// longer the session's current one revokes the whole session.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.ParseRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureInvalid, Err: err}
	}
	res := RefreshResult{AccountID: claims.Subject, SessionID: claims.SID}

	revoked, err := deps.IsRevoked(ctx, claims.ID)
	if err != nil {
		return res.fail(RefreshFailureUnavailable, err)
	}
	if revoked {
		revokeReused(ctx, claims.SID, deps)
		return res.fail(RefreshFailureReuse, token.ErrRevoked)
	}

	sess, err := deps.GetSession(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return res.fail(RefreshFailureSessionNotFound, err)
		}
		return res.fail(RefreshFailureUnavailable, err)
	}
	if sess.AccountID != claims.Subject {
		return res.fail(RefreshFailureInvalid, session.ErrOwnerMismatch)
	}
	if sess.RefreshJTI != claims.ID {
		revokeReused(ctx, sess.ID, deps)
		return res.fail(RefreshFailureReuse, session.ErrRefreshReused)
	}

	a, err := deps.LoadAccount(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			revokeReused(ctx, sess.ID, deps)
			return res.fail(RefreshFailureAccount, err)
		}
		return res.fail(RefreshFailureUnavailable, err)
	}
	res.Account = a
	if !a.Active || (deps.RequireVerified && !a.Verified) {
		if err := deps.RevokeSession(ctx, sess.ID); err != nil {
			deps.Warn("refresh_revoke_inactive", err)
		}
		return res.fail(RefreshFailureAccount, accounts.ErrInactive)
	}

	access, err := deps.IssueAccess(a, sess.ID)
	if err != nil {
		return res.fail(RefreshFailureIssue, err)
	}
	next, err := deps.IssueRefresh(a.ID, sess.ID)
	if err != nil {
		return res.fail(RefreshFailureIssue, err)
	}

	if err := deps.Rotate(ctx, sess.ID, a.ID, claims.ID, next.JTI); err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshReused):
			return res.fail(RefreshFailureReuse, err)
		case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrOwnerMismatch):
			return res.fail(RefreshFailureSessionNotFound, err)
		default:
			return res.fail(RefreshFailureUnavailable, err)
		}
	}

	// The rotation already made the old jti unusable; the revocation entry
	// lets a replay be recognized even after the session record changes.
	if claims.ExpiresAt != nil {
		if err := deps.RevokeJTI(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			deps.Warn("refresh_revoke_old", err)
		}
	}

	sess.RefreshJTI = next.JTI
	res.Issued = &Issued{
		Session: sess,
		Access:  access,
		Refresh: next,
		CSRF:    deps.GenerateCSRF(sess.ID),
	}
	return res
}

func (r RefreshResult) fail(kind RefreshFailureKind, err error) RefreshResult {
	r.Failure = kind
	r.Err = err
	return r
}

func revokeReused(ctx context.Context, sid string, deps RefreshDeps) {
	if sid == "" {
		return
	}
	if err := deps.RevokeSession(ctx, sid); err != nil {
		deps.Warn("refresh_reuse_revoke", err)
	}
}
