package authcore

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Config holds every tunable of the Engine. Start from [DefaultConfig] and
// override what differs; the signing and CSRF secrets have no defaults.
type Config struct {
	JWT               JWTConfig
	Session           SessionConfig
	Password          PasswordConfig
	PasswordPolicy    PasswordPolicyConfig
	Lockout           LockoutConfig
	RateLimit         RateLimitConfig
	CSRF              CSRFConfig
	Cookie            CookieConfig
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	TOTP              TOTPConfig
	Store             StoreConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
	ValidationMode    ValidationMode
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	// PrivateKey is the HS256 secret (at least 32 bytes) or the Ed25519
	// private key.
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Audience   string
	KeyID      string
	Leeway     time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the Redis key layout. Session lifetime follows
// JWT.RefreshTTL.
type SessionConfig struct {
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id cost parameters.
type PasswordConfig struct {
	Memory        uint32 // KiB
	Time          uint32
	Parallelism   uint8
	SaltLength    uint32
	KeyLength     uint32
	MaxBytes      int
	MaxConcurrent int64
}

// PasswordPolicyConfig is enforced on registration, change and reset.
type PasswordPolicyConfig struct {
	MinLength     int
	MaxLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

/*
====================================
LOCKOUT & RATE LIMIT CONFIG
====================================
*/

// LockoutConfig locks an account after Threshold consecutive failures.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

// RatePolicy allows Limit attempts per Window.
type RatePolicy struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig holds every limiter budget.
type RateLimitConfig struct {
	RedisPrefix        string
	LoginPerIP         RatePolicy
	LoginPerEmail      RatePolicy
	RegisterPerIP      RatePolicy
	PasswordResetEmail RatePolicy
	VerificationEmail  RatePolicy
}

/*
====================================
CSRF & COOKIE CONFIG
====================================
*/

// CSRFConfig configures session-bound CSRF tokens.
type CSRFConfig struct {
	Secret     []byte
	MaxAge     time.Duration
	HeaderName string
}

// CookieConfig shapes the cookies set by the HTTP layer.
type CookieConfig struct {
	Domain      string
	Secure      bool
	SameSite    http.SameSite
	AccessName  string
	RefreshName string
	CSRFName    string
	// RefreshPath scopes the refresh cookie to the auth routes.
	RefreshPath string
}

/*
====================================
EMAIL VERIFICATION & RESET CONFIG
====================================
*/

// EmailVerificationConfig controls verification before first login.
type EmailVerificationConfig struct {
	Required bool
	TokenTTL time.Duration
}

// PasswordResetConfig controls reset tokens.
type PasswordResetConfig struct {
	TokenTTL time.Duration
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig configures optional two-factor login.
type TOTPConfig struct {
	Issuer string
	Digits int
	Period int
	Skew   int
}

/*
====================================
STORE, AUDIT & METRICS CONFIG
====================================
*/

// StoreConfig bounds every call to Redis and the account database.
type StoreConfig struct {
	OperationTimeout time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// SinkTimeout bounds one sink delivery.
	SinkTimeout time.Duration
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. JWT.PrivateKey and
// CSRF.Secret must still be set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
			SigningMethod: "hs256",
		},
		Session: SessionConfig{
			RedisPrefix: "authcore",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
			MaxBytes:    1024,
		},
		PasswordPolicy: PasswordPolicyConfig{
			MinLength:     8,
			MaxLength:     128,
			RequireUpper:  true,
			RequireLower:  true,
			RequireDigit:  true,
			RequireSymbol: true,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  30 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RedisPrefix:        "rl",
			LoginPerIP:         RatePolicy{Limit: 5, Window: 15 * time.Minute},
			LoginPerEmail:      RatePolicy{Limit: 5, Window: 15 * time.Minute},
			RegisterPerIP:      RatePolicy{Limit: 3, Window: time.Hour},
			PasswordResetEmail: RatePolicy{Limit: 3, Window: time.Hour},
			VerificationEmail:  RatePolicy{Limit: 3, Window: time.Hour},
		},
		CSRF: CSRFConfig{
			MaxAge:     time.Hour,
			HeaderName: "X-CSRF-Token",
		},
		Cookie: CookieConfig{
			Secure:      true,
			SameSite:    http.SameSiteLaxMode,
			AccessName:  "access_token",
			RefreshName: "refresh_token",
			CSRFName:    "csrf_token",
			RefreshPath: "/auth",
		},
		EmailVerification: EmailVerificationConfig{
			Required: true,
			TokenTTL: 24 * time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL: time.Hour,
		},
		TOTP: TOTPConfig{
			Issuer: "authcore",
			Digits: 6,
			Period: 30,
			Skew:   1,
		},
		Store: StoreConfig{
			OperationTimeout: 2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		ValidationMode: ModeStrict,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.CSRF.Secret = cloneBytes(cfg.CSRF.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

const minSecretBytes = 32

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < minSecretBytes {
			return fmt.Errorf("hs256 requires a PrivateKey of at least %d bytes", minSecretBytes)
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > time.Minute {
		return errors.New("JWT Leeway must be between 0 and 1m")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.PasswordPolicy.MinLength < 8 {
		return errors.New("PasswordPolicy MinLength must be >= 8")
	}
	if c.PasswordPolicy.MaxLength < c.PasswordPolicy.MinLength {
		return errors.New("PasswordPolicy MaxLength must be >= MinLength")
	}
	if c.Password.MaxBytes > 0 && c.PasswordPolicy.MaxLength*4 > c.Password.MaxBytes {
		return errors.New("PasswordPolicy MaxLength exceeds Password MaxBytes")
	}

	// Lockout & rate limits
	if c.Lockout.Threshold < 1 || c.Lockout.Duration <= 0 {
		return errors.New("Lockout Threshold and Duration must be > 0")
	}
	for name, p := range map[string]RatePolicy{
		"LoginPerIP":         c.RateLimit.LoginPerIP,
		"LoginPerEmail":      c.RateLimit.LoginPerEmail,
		"RegisterPerIP":      c.RateLimit.RegisterPerIP,
		"PasswordResetEmail": c.RateLimit.PasswordResetEmail,
		"VerificationEmail":  c.RateLimit.VerificationEmail,
	} {
		if p.Limit < 1 || p.Window <= 0 {
			return fmt.Errorf("RateLimit %s must have Limit >= 1 and Window > 0", name)
		}
	}

	// CSRF & cookies
	if len(c.CSRF.Secret) < minSecretBytes {
		return fmt.Errorf("CSRF Secret must be at least %d bytes", minSecretBytes)
	}
	if c.CSRF.MaxAge <= 0 {
		return errors.New("CSRF MaxAge must be > 0")
	}
	if c.CSRF.HeaderName == "" {
		return errors.New("CSRF HeaderName must not be empty")
	}
	if c.Cookie.AccessName == "" || c.Cookie.RefreshName == "" || c.Cookie.CSRFName == "" {
		return errors.New("Cookie names must not be empty")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Verification, reset, totp
	if c.EmailVerification.TokenTTL <= 0 {
		return errors.New("EmailVerification TokenTTL must be > 0")
	}
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("TOTP Digits must be between 6 and 8")
	}
	if c.TOTP.Period <= 0 || c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("TOTP Period must be > 0 and Skew between 0 and 2")
	}

	// Store, audit, mode
	if c.Store.OperationTimeout <= 0 {
		return errors.New("Store OperationTimeout must be > 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Audit.SinkTimeout < 0 {
		return errors.New("Audit SinkTimeout must be >= 0")
	}
	if c.ValidationMode != ModeStrict && c.ValidationMode != ModeJWTOnly {
		return errors.New("invalid ValidationMode")
	}
	return nil
}
