package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// Kind separates access tokens from refresh tokens. A token of one kind is
// never accepted where the other is expected.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	// ErrMalformed covers bad encoding, bad signature, wrong algorithm and
	// missing required claims.
	ErrMalformed = errors.New("jwt: malformed or unsigned token")
	// ErrExpired is returned when exp is in the past (after leeway).
	ErrExpired = errors.New("jwt: token expired")
	// ErrWrongKind is returned when the kind claim does not match.
	ErrWrongKind = errors.New("jwt: wrong token kind")
)

// Config holds signing keys and validation settings.
type Config struct {
	SigningMethod SigningMethod
	// PrivateKey is the HMAC secret for HS256 or the Ed25519 private key
	// (raw or PEM).
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
	KeyID      string
	// VerifyKeys maps kid to verification key during key rotation.
	VerifyKeys map[string][]byte
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Claims is the payload of both token kinds. Role and Permissions are only
// set on access tokens.
type Claims struct {
	Kind        Kind     `json:"kind"`
	SID         string   `json:"sid,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and parses tokens.
type Manager struct {
	config Config
	now    func() time.Time
}

const minHMACKeyBytes = 32

// NewManager validates cfg.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: leeway must be within [0, 2m]")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACKeyBytes {
			return nil, fmt.Errorf("jwt: hs256 secret must be at least %d bytes", minHMACKeyBytes)
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("jwt: ed25519 requires a public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("jwt: verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("jwt: verify key %q: %w", kid, err)
			}
		}
	default:
		return nil, fmt.Errorf("jwt: unsupported signing method %q", cfg.SigningMethod)
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("jwt: KeyID is not present in VerifyKeys")
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{config: cfg, now: now}, nil
}

// Sign fills jti, iat, exp, iss and aud on c and returns the compact token
// together with the final claims.
func (m *Manager) Sign(c Claims, ttl time.Duration) (string, *Claims, error) {
	if ttl <= 0 {
		return "", nil, errors.New("jwt: ttl must be positive")
	}
	if c.Kind != KindAccess && c.Kind != KindRefresh {
		return "", nil, fmt.Errorf("jwt: unknown kind %q", c.Kind)
	}
	if c.Subject == "" {
		return "", nil, errors.New("jwt: subject required")
	}

	now := m.now()
	c.ID = uuid.NewString()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	c.Issuer = m.config.Issuer
	if m.config.Audience != "" {
		c.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method(), &c)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}
	key, err := m.signKey()
	if err != nil {
		return "", nil, err
	}
	signed, err := token.SignedString(key)
	if err != nil {
		return "", nil, err
	}
	return signed, &c, nil
}

// Parse verifies signature, expiry, issuer, audience and kind.
func (m *Manager) Parse(tokenStr string, want Kind) (*Claims, error) {
	claims, err := m.parse(tokenStr, jwt.WithExpirationRequired(), jwt.WithIssuedAt())
	if err != nil {
		return nil, err
	}
	if claims.Kind != want {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// ParseIgnoringExpiry verifies the signature but skips time-based claim
// validation. It is used to revoke tokens that may already be expired.
func (m *Manager) ParseIgnoringExpiry(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, jwt.WithoutClaimsValidation())
}

func (m *Manager) parse(tokenStr string, extra ...jwt.ParserOption) (*Claims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, ErrMalformed
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}
	options = append(options, extra...)

	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, m.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing jti or sub", ErrMalformed)
	}
	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != m.method().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm %s", t.Method.Alg())
	}

	kid, _ := t.Header["kid"].(string)
	if len(m.config.VerifyKeys) > 0 {
		key, ok := m.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return m.verifyKeyFrom(key)
	}
	if m.config.KeyID != "" && kid != m.config.KeyID {
		return nil, errors.New("unknown kid")
	}
	return m.verifyKeyFrom(m.verifyKeyBytes())
}

func (m *Manager) method() jwt.SigningMethod {
	if m.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func (m *Manager) signKey() (interface{}, error) {
	if m.config.SigningMethod == MethodHS256 {
		return m.config.PrivateKey, nil
	}
	if len(m.config.PrivateKey) == 0 {
		return nil, errors.New("jwt: manager has no private key")
	}
	return parseEdPrivateKey(m.config.PrivateKey)
}

func (m *Manager) verifyKeyBytes() []byte {
	if m.config.SigningMethod == MethodHS256 {
		return m.config.PrivateKey
	}
	return m.config.PublicKey
}

func (m *Manager) verifyKeyFrom(key []byte) (interface{}, error) {
	if m.config.SigningMethod == MethodHS256 {
		return key, nil
	}
	return parseEdPublicKey(key)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwt: invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("jwt: invalid ed25519 public key type")
	}
	return edKey, nil
}
