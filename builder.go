package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/accounts"
	"github.com/MrEthical07/authcore/csrf"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/notify"
	"github.com/MrEthical07/authcore/internal/otp"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/token"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Builder assembles an [Engine]. Configure it during startup, call Build
// once and use the returned Engine from then on.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  accounts.Store
	log    zerolog.Logger
	now    func() time.Time

	grants    map[permission.Role][]string
	auditSink AuditSink
	notifier  Notifier

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		log:    zerolog.Nop(),
		grants: map[permission.Role][]string{},
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for sessions, revocations, rate limits and
// one-time tokens. It is required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDB stores accounts in db through GORM. The accounts table must already
// be migrated, see [accounts.GormStore.Migrate].
func (b *Builder) WithDB(db *gorm.DB) *Builder {
	if db != nil {
		b.store = accounts.NewGormStore(db)
	}
	return b
}

// WithAccountStore sets a custom account store. It takes precedence over
// WithDB when called later.
func (b *Builder) WithAccountStore(store accounts.Store) *Builder {
	b.store = store
	return b
}

// WithLogger sets the logger for best-effort failures that do not fail the
// request.
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.log = log
	return b
}

// WithClock overrides time.Now for token issuance, lockouts and TOTP.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithPermissions grants extra permissions to role and every role ranked
// above it.
func (b *Builder) WithPermissions(role permission.Role, perms ...string) *Builder {
	b.grants[role] = append(b.grants[role], perms...)
	return b
}

// WithAuditSink enables auditing into sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithNotifier sets where verification and reset tokens are delivered.
// Without one the tokens are only logged as issued.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithValidationMode selects strict or JWT-only access validation.
func (b *Builder) WithValidationMode(mode ValidationMode) *Builder {
	b.config.ValidationMode = mode
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("account store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- ROLES --------
	roles := permission.NewRoleManager()
	for role, perms := range b.grants {
		if err := roles.Grant(role, perms...); err != nil {
			return nil, err
		}
	}
	roles.Freeze()

	// -------- REDIS-BACKED STORES --------
	timeout := cfg.Store.OperationTimeout
	keyed := stores.NewRedis(b.redis, cfg.Session.RedisPrefix).WithOperationTimeout(timeout)
	sessions := session.NewStore(b.redis, cfg.Session.RedisPrefix+":sess", cfg.JWT.RefreshTTL, now).
		WithOperationTimeout(timeout)
	limiter := rate.New(keyed, cfg.RateLimit.RedisPrefix)

	// -------- CREDENTIALS --------
	hasher, err := password.NewHasher(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxBytes,
		MaxConcurrent:    cfg.Password.MaxConcurrent,
	})
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	store := accounts.WithTimeout(b.store, timeout)
	creds := accounts.NewCredentials(store, hasher, accounts.LockoutPolicy{
		Threshold: cfg.Lockout.Threshold,
		Duration:  cfg.Lockout.Duration,
	}, now, b.log)

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}
	tokens, err := token.NewService(jm, keyed, token.Config{
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	}, now)
	if err != nil {
		return nil, err
	}
	guard, err := csrf.NewGuard(cfg.CSRF.Secret, cfg.CSRF.MaxAge, now)
	if err != nil {
		return nil, err
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(b.log)
	}

	engine := &Engine{
		config:   cfg,
		log:      b.log,
		now:      now,
		accounts: store,
		creds:    creds,
		sessions: sessions,
		tokens:   tokens,
		jwt:      jm,
		csrf:     guard,
		roles:    roles,
		totp: otp.TOTP{
			Issuer: cfg.TOTP.Issuer,
			Digits: cfg.TOTP.Digits,
			Period: cfg.TOTP.Period,
			Skew:   cfg.TOTP.Skew,
		},
		loginLimiter: limiters.NewLoginLimiter(limiter, limiters.LoginConfig{
			PerIP:    ratePolicy(cfg.RateLimit.LoginPerIP),
			PerEmail: ratePolicy(cfg.RateLimit.LoginPerEmail),
		}),
		registerThrottle:     limiters.NewThrottle(limiter, "register:ip", ratePolicy(cfg.RateLimit.RegisterPerIP)),
		resetThrottle:        limiters.NewThrottle(limiter, "reset:email", ratePolicy(cfg.RateLimit.PasswordResetEmail)),
		verificationThrottle: limiters.NewThrottle(limiter, "verify:email", ratePolicy(cfg.RateLimit.VerificationEmail)),
		verifyTokens:         stores.NewOneTimeTokens(keyed, "verify"),
		resetTokens:          stores.NewOneTimeTokens(keyed, "reset"),
		notifier:             notifier,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:     cfg.Audit.Enabled,
			BufferSize:  cfg.Audit.BufferSize,
			DropIfFull:  cfg.Audit.DropIfFull,
			SinkTimeout: cfg.Audit.SinkTimeout,
		}, b.auditSink, b.log),
		metrics: NewMetrics(cfg.Metrics),
	}
	engine.flow = engine.buildFlows()

	b.built = true
	return engine, nil
}

func ratePolicy(p RatePolicy) rate.Policy {
	return rate.Policy{Limit: p.Limit, Window: p.Window}
}
