package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

// LogoutInput identifies what a single-session logout revokes.
type LogoutInput struct {
	AccountID    string
	SessionID    string
	AccessJTI    string
	AccessExp    time.Time
	RefreshToken string
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	ParseRefreshIgnoringExpiry func(tokenStr string) (*jwt.Claims, error)
	RevokeJTI                  func(ctx context.Context, jti string, exp time.Time) error
	RevokeSession              func(ctx context.Context, sid string) error
	RevokeAll                  func(ctx context.Context, accountID string) (int, error)
}

// RunLogout revokes the access jti, the refresh jti when the refresh token
// belongs to the same session, and the session itself. Every step runs even
// when an earlier one fails.
func RunLogout(ctx context.Context, in LogoutInput, deps LogoutDeps) error {
	var errs []error

	if in.AccessJTI != "" {
		if err := deps.RevokeJTI(ctx, in.AccessJTI, in.AccessExp); err != nil {
			errs = append(errs, err)
		}
	}

	if in.RefreshToken != "" {
		claims, err := deps.ParseRefreshIgnoringExpiry(in.RefreshToken)
		if err == nil && claims.SID == in.SessionID && claims.Subject == in.AccountID && claims.ExpiresAt != nil {
			if err := deps.RevokeJTI(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if err := deps.RevokeSession(ctx, in.SessionID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RunLogoutAll revokes every session of accountID and reports how many.
func RunLogoutAll(ctx context.Context, accountID string, deps LogoutDeps) (int, error) {
	return deps.RevokeAll(ctx, accountID)
}
