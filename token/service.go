package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/cenkalti/backoff/v4"
	gjwt "github.com/golang-jwt/jwt/v5"
)

// ErrRevoked is returned by Verify for tokens in the revocation set.
var ErrRevoked = errors.New("token: revoked")

// minRevocationTTL keeps a revocation entry alive for tokens that expire
// within the current second.
const minRevocationTTL = time.Second

// Config sets the lifetimes of both token kinds.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// RetryDelay is the pause before the single revocation lookup retry.
	RetryDelay time.Duration
}

// Issued is a freshly signed token.
type Issued struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// Service issues, verifies and revokes tokens.
type Service struct {
	manager *jwt.Manager
	revoked *RevocationSet
	cfg     Config
	now     func() time.Time
}

// NewService wires a signer to a revocation set kept in keyed.
func NewService(manager *jwt.Manager, keyed stores.Keyed, cfg Config, now func() time.Time) (*Service, error) {
	if manager == nil || keyed == nil {
		return nil, errors.New("token: manager and store are required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: ttl must be positive")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("token: refresh ttl shorter than access ttl")
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 25 * time.Millisecond
	}
	if now == nil {
		now = time.Now
	}
	return &Service{manager: manager, revoked: NewRevocationSet(keyed), cfg: cfg, now: now}, nil
}

// IssueAccess signs an access token for a session.
func (s *Service) IssueAccess(accountID, sessionID, role string, perms []string) (Issued, error) {
	return s.issue(jwt.Claims{
		Kind:             jwt.KindAccess,
		SID:              sessionID,
		Role:             role,
		Permissions:      perms,
		RegisteredClaims: gjwt.RegisteredClaims{Subject: accountID},
	}, s.cfg.AccessTTL)
}

// IssueRefresh signs a refresh token for a session.
func (s *Service) IssueRefresh(accountID, sessionID string) (Issued, error) {
	return s.issue(jwt.Claims{
		Kind:             jwt.KindRefresh,
		SID:              sessionID,
		RegisteredClaims: gjwt.RegisteredClaims{Subject: accountID},
	}, s.cfg.RefreshTTL)
}

func (s *Service) issue(c jwt.Claims, ttl time.Duration) (Issued, error) {
	signed, claims, err := s.manager.Sign(c, ttl)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, JTI: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Parse checks signature, expiry and kind without consulting the revocation
// set.
func (s *Service) Parse(tokenStr string, want jwt.Kind) (*jwt.Claims, error) {
	return s.manager.Parse(tokenStr, want)
}

// IsRevoked reports whether jti is in the revocation set, retrying a failed
// lookup once.
func (s *Service) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return s.isRevoked(ctx, jti)
}

// Verify checks signature, expiry, kind and revocation. A failed revocation
// lookup is retried once; a second failure is returned wrapped in
// stores.ErrUnavailable and the token is not accepted.
func (s *Service) Verify(ctx context.Context, tokenStr string, want jwt.Kind) (*jwt.Claims, error) {
	claims, err := s.manager.Parse(tokenStr, want)
	if err != nil {
		return nil, err
	}

	revoked, err := s.isRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevoked
	}
	return claims, nil
}

func (s *Service) isRevoked(ctx context.Context, jti string) (bool, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.RetryDelay), 1),
		ctx,
	)
	return backoff.RetryWithData(func() (bool, error) {
		revoked, err := s.revoked.Contains(ctx, jti)
		if err != nil && !errors.Is(err, stores.ErrUnavailable) {
			return false, backoff.Permanent(err)
		}
		return revoked, err
	}, policy)
}

// Revoke adds the token's jti to the revocation set until its expiry. The
// signature must be valid; expiry is not required, so an already expired
// token is accepted and is a no-op beyond the minimum entry lifetime.
func (s *Service) Revoke(ctx context.Context, tokenStr string) error {
	claims, err := s.manager.ParseIgnoringExpiry(tokenStr)
	if err != nil {
		return err
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return s.RevokeID(ctx, claims.ID, exp)
}

// RevokeID revokes a jti that expires at exp.
func (s *Service) RevokeID(ctx context.Context, jti string, exp time.Time) error {
	if jti == "" {
		return fmt.Errorf("%w: empty jti", jwt.ErrMalformed)
	}
	ttl := exp.Sub(s.now())
	if ttl < minRevocationTTL {
		ttl = minRevocationTTL
	}
	return s.revoked.Add(ctx, jti, ttl)
}

// AccessTTL returns the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *Service) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }
