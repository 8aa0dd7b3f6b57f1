package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/session"
)

// AuthorizeFailureKind classifies access-token validation failures.
type AuthorizeFailureKind int

const (
	AuthorizeFailureNone AuthorizeFailureKind = iota
	AuthorizeFailureInvalid
	AuthorizeFailureSessionGone
	AuthorizeFailureUnavailable
)

// AuthorizeResult returns either verified claims or a classified failure.
type AuthorizeResult struct {
	Failure AuthorizeFailureKind
	Err     error
	Claims  *jwt.Claims
}

// AuthorizeDeps captures access validation dependencies.
type AuthorizeDeps struct {
	VerifyAccess func(ctx context.Context, tokenStr string) (*jwt.Claims, error)
	GetSession   func(ctx context.Context, sid string) (*session.Session, error)
}

// RunAuthorize verifies tokenStr. With checkSession the backing session
// must still exist and belong to the token subject.
func RunAuthorize(ctx context.Context, tokenStr string, checkSession bool, deps AuthorizeDeps) AuthorizeResult {
	claims, err := deps.VerifyAccess(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, stores.ErrUnavailable) {
			return AuthorizeResult{Failure: AuthorizeFailureUnavailable, Err: err}
		}
		return AuthorizeResult{Failure: AuthorizeFailureInvalid, Err: err}
	}
	if !checkSession {
		return AuthorizeResult{Claims: claims}
	}

	sess, err := deps.GetSession(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return AuthorizeResult{Failure: AuthorizeFailureSessionGone, Err: err}
		}
		return AuthorizeResult{Failure: AuthorizeFailureUnavailable, Err: err}
	}
	if sess.AccountID != claims.Subject {
		return AuthorizeResult{Failure: AuthorizeFailureSessionGone, Err: session.ErrOwnerMismatch}
	}
	return AuthorizeResult{Claims: claims}
}
